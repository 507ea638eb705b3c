package ppg

import (
	"context"

	"github.com/ppg-community/ppg-go/internal/ppgerr"
	"github.com/ppg-community/ppg-go/internal/types"
	"github.com/ppg-community/ppg-go/internal/wire"
)

// Rows is a statement's result: a finalized column list plus a row
// iterator. Values are decoded through the parser table keyed by each
// column's type oid; row-to-struct mapping is left to the caller, mirroring
// this module's scope: it hands back decoded Go values, not objects.
type Rows struct {
	columns []wire.Column
	oids    []types.Oid
	parsers types.ParserTable
	source  rowSource
}

func newRows(resp statementResponse, parsers types.ParserTable) *Rows {
	oids := make([]types.Oid, len(resp.Columns))
	for i, c := range resp.Columns {
		oids[i] = types.Oid(c.Oid)
	}
	return &Rows{columns: resp.Columns, oids: oids, parsers: parsers, source: resp.Rows}
}

// Columns returns the result's column descriptors in projection order.
func (r *Rows) Columns() []wire.Column {
	return r.columns
}

// Next decodes and returns the next row, or (nil, false, nil) at a clean
// end of stream. A server-reported error surfaces here as a
// *ppgerr.DatabaseError, after the columns have already been returned to
// the caller, per the protocol's ordering guarantee.
func (r *Rows) Next(ctx context.Context) ([]any, bool, error) {
	raw, ok, err := r.source.Next(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	values, err := types.ParseRow(r.parsers, r.oids, raw)
	if err != nil {
		return nil, false, err
	}
	return values, true, nil
}

// Collect decodes and returns every remaining row. Idempotent: once
// exhausted, further calls return an empty slice.
func (r *Rows) Collect(ctx context.Context) ([][]any, error) {
	raw, err := r.source.Collect(ctx)
	if err != nil {
		return nil, err
	}
	out := make([][]any, len(raw))
	for i, row := range raw {
		values, perr := types.ParseRow(r.parsers, r.oids, row)
		if perr != nil {
			return out[:i], perr
		}
		out[i] = values
	}
	return out, nil
}

// Close releases the row stream's underlying resources without waiting for
// the server's terminal frame. The cancellation-safety property requires
// Next to report end of stream immediately after Close.
func (r *Rows) Close() error {
	return r.source.Close()
}

// singleAffectedCount reads exactly one row whose single value is the
// decimal string affected count, per exec's statement-response contract. A
// missing row, the wrong shape, or a non-nonnegative-integer value is a
// protocol error.
func singleAffectedCount(ctx context.Context, rows *Rows) (int64, error) {
	defer rows.Close()

	values, ok, err := rows.Next(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ppgerr.NewProtocolError("statement", "exec response is missing its affected-count row")
	}
	if len(values) != 1 {
		return 0, ppgerr.NewProtocolError("statement", "exec response row has the wrong shape")
	}

	s, ok := values[0].(string)
	if !ok {
		return 0, ppgerr.NewProtocolError("statement", "exec response value is not a decimal string")
	}

	n, err := parseNonnegativeInt(s)
	if err != nil {
		return 0, ppgerr.NewProtocolError("statement", "exec response value %q is not a nonnegative integer", s)
	}
	return n, nil
}

func parseNonnegativeInt(s string) (int64, error) {
	var n int64
	if s == "" {
		return 0, ppgerr.NewValidationError("empty integer")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ppgerr.NewValidationError("not a digit: %q", r)
		}
		n = n*10 + int64(r-'0')
	}
	return n, nil
}
