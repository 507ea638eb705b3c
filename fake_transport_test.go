package ppg

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/ppg-community/ppg-go/internal/ppgerr"
	"github.com/ppg-community/ppg-go/internal/wire"
)

// fakeTransport is a mock.Mock-based stand-in for the statement-layer
// transport interface, scripted per-SQL-statement via On/Return so the
// statement layer, Session, Transaction, and Batch can be tested without a
// network.
type fakeTransport struct {
	mock.Mock

	mu     sync.Mutex
	calls  []fakeCall
	closed bool
}

type fakeCall struct {
	Kind wire.StatementKind
	SQL  string
}

type fakeResponse struct {
	Columns []wire.Column
	Rows    [][]*string
	Err     error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

// on scripts the response returned for a given SQL statement, regardless of
// kind or params.
func (f *fakeTransport) on(sql string, resp fakeResponse) *fakeTransport {
	f.On("Statement", mock.Anything, mock.Anything, sql, mock.Anything).Return(resp)
	return f
}

// Statement records the call for sqlSequence/calls assertions, then looks up
// the scripted mock.Mock expectation for sql. A statement with no matching
// On(...) call panics inside mock.Mock, which is recovered here and turned
// into an ordinary protocol error, the same failure shape an un-mocked
// transport would produce for an unrecognized statement.
func (f *fakeTransport) Statement(ctx context.Context, kind wire.StatementKind, sql string, params []wire.RawParameter) (resp statementResponse, err error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Kind: kind, SQL: sql})
	f.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			resp, err = statementResponse{}, ppgerr.NewProtocolError("fake", "unscripted statement %q", sql)
		}
	}()

	result := f.Called(ctx, kind, sql, params).Get(0).(fakeResponse)
	if result.Err != nil {
		return statementResponse{}, result.Err
	}
	return statementResponse{Columns: result.Columns, Rows: &fakeRowSource{rows: result.Rows}}, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) sqlSequence() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.SQL
	}
	return out
}

// fakeRowSource is a rowSource backed by a plain in-memory slice.
type fakeRowSource struct {
	rows   [][]*string
	idx    int
	closed bool
}

func (r *fakeRowSource) Next(context.Context) ([]*string, bool, error) {
	if r.idx >= len(r.rows) {
		return nil, false, nil
	}
	row := r.rows[r.idx]
	r.idx++
	return row, true, nil
}

func (r *fakeRowSource) Collect(ctx context.Context) ([][]*string, error) {
	var out [][]*string
	for {
		row, ok, err := r.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}

func (r *fakeRowSource) Close() error {
	r.closed = true
	return nil
}

func strp(s string) *string { return &s }
