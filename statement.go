package ppg

import (
	"context"

	"github.com/ppg-community/ppg-go/internal/types"
	"github.com/ppg-community/ppg-go/internal/wire"
)

// statementer is the shared statement-layer surface implemented by Client
// (HTTP, stateless) and Session (WebSocket, stateful): "statement(kind,
// sql, params) -> statement-response", with query/exec as named
// convenience wrappers around it.
type statementer struct {
	t           transport
	serializers types.SerializerTable
	parsers     types.ParserTable
}

func newStatementer(t transport, cfg *ClientConfig) statementer {
	return statementer{t: t, serializers: cfg.Serializers, parsers: cfg.Parsers}
}

func (s statementer) statement(ctx context.Context, kind wire.StatementKind, sql string, args []any) (*Rows, error) {
	params := types.SerializeAll(s.serializers, args)
	resp, err := s.t.Statement(ctx, kind, sql, params)
	if err != nil {
		return nil, err
	}
	return newRows(resp, s.parsers), nil
}

// query delegates statement("query", ...).
func (s statementer) query(ctx context.Context, sql string, args ...any) (*Rows, error) {
	return s.statement(ctx, wire.Query, sql, args)
}

// exec delegates statement("exec", ...) and reads exactly one row whose
// single value is the decimal string affected count.
func (s statementer) exec(ctx context.Context, sql string, args ...any) (Result, error) {
	rows, err := s.statement(ctx, wire.Exec, sql, args)
	if err != nil {
		return Result{}, err
	}
	n, err := singleAffectedCount(ctx, rows)
	if err != nil {
		return Result{}, err
	}
	return Result{rowsAffected: n}, nil
}
