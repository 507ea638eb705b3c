package ppg

import (
	"context"

	"github.com/ppg-community/ppg-go/internal/queryqueue"
	"github.com/ppg-community/ppg-go/internal/wire"
	"github.com/ppg-community/ppg-go/internal/wstransport"
)

// Session is a handle to a single WebSocket connection plus its bound
// parser/serializer tables; lifecycle connect -> active -> closed. Active
// is true iff the underlying socket is still open. Disposal closes the
// socket with a normal closure code; any transaction left open is
// implicitly rolled back by the server.
type Session struct {
	conn *wstransport.Conn
	st   statementer
}

// Query delegates statement("query", ...) over the session's shared
// WebSocket connection. Concurrent calls on the same session interleave at
// the statement boundary, not within a statement: the send queue writes
// each statement's frames contiguously.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (*Rows, error) {
	return s.st.query(ctx, sql, args...)
}

// Exec delegates statement("exec", ...) over the session's shared
// WebSocket connection.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	return s.st.exec(ctx, sql, args...)
}

// Active reports whether the underlying socket is still open.
func (s *Session) Active() bool {
	return s.conn.IsConnected()
}

// Close performs a normal closure. Safe to call more than once.
func (s *Session) Close() error {
	return s.conn.Close()
}

// wsTransportAdapter adapts *wstransport.Conn to the root package's
// transport interface.
type wsTransportAdapter struct {
	conn *wstransport.Conn
}

func (a wsTransportAdapter) Statement(ctx context.Context, kind wire.StatementKind, sql string, params []wire.RawParameter) (statementResponse, error) {
	result, err := a.conn.Statement(ctx, kind, sql, params)
	if err != nil {
		return statementResponse{}, err
	}
	return toStatementResponse(result), nil
}

func (a wsTransportAdapter) Close() error { return a.conn.Close() }

func toStatementResponse(result queryqueue.Result) statementResponse {
	return statementResponse{Columns: result.Columns, Rows: result.Rows}
}
