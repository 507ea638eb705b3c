package ppg

import (
	"context"

	"github.com/ppg-community/ppg-go/internal/wire"
)

// rowSource is the shape both transports' row streams share: the HTTP
// transport's NDJSON RowStream and the WebSocket transport's RunningQuery
// are each consumed through this interface so the statement layer above
// does not need to know which transport produced a given result.
type rowSource interface {
	Next(ctx context.Context) ([]*string, bool, error)
	Collect(ctx context.Context) ([][]*string, error)
	Close() error
}

// statementResponse is a transport-agnostic statement result: columns plus
// a row stream, exactly as described by the protocol's statement-response
// shape.
type statementResponse struct {
	Columns []wire.Column
	Rows    rowSource
}

// transport is implemented by both the HTTP and WebSocket transports so the
// statement layer can dispatch a query/exec without caring which one is in
// play.
type transport interface {
	Statement(ctx context.Context, kind wire.StatementKind, sql string, params []wire.RawParameter) (statementResponse, error)
	Close() error
}
