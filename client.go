// Package ppg is a client for a serverless Postgres-as-a-service endpoint:
// every statement is serialized into a small wire protocol and sent over
// either a stateless HTTP request or a shared, authenticated WebSocket
// session, with results decoded back through a pluggable parser table.
package ppg

import (
	"context"

	"github.com/ppg-community/ppg-go/internal/httptransport"
	"github.com/ppg-community/ppg-go/internal/wire"
	"github.com/ppg-community/ppg-go/internal/wstransport"
)

// Client is a handle bound to one endpoint/database/credential set. It
// issues statements over the stateless HTTP transport directly, and can
// open a Session for the stateful, pipelined WebSocket transport. A Client
// has no open/close lifecycle of its own: there is no persistent
// connection to release until a Session is opened from it.
type Client struct {
	cfg statementer

	rawCfg *ClientConfig
}

// Open parses connStr and constructs a Client ready to issue HTTP
// statements. Any opts override fields already parsed from the connection
// string.
func Open(connStr string, opts ...Option) (*Client, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, opts...)
}

// NewClient constructs a Client from an already-built ClientConfig, e.g.
// when the endpoint is supplied directly instead of through a connection
// string.
func NewClient(cfg *ClientConfig, opts ...Option) (*Client, error) {
	applyOptions(cfg, opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	httpTransport := httptransport.New(httptransport.Config{
		Endpoint:  cfg.Endpoint,
		Database:  cfg.Database,
		User:      cfg.User,
		Password:  cfg.Password,
		Keepalive: cfg.Keepalive,
		Logger:    cfg.Logger,
	})

	return &Client{
		cfg:    newStatementer(httpTransportAdapter{httpTransport}, cfg),
		rawCfg: cfg,
	}, nil
}

// Query delegates statement("query", ...).
func (c *Client) Query(ctx context.Context, sql string, args ...any) (*Rows, error) {
	return c.cfg.query(ctx, sql, args...)
}

// Exec delegates statement("exec", ...) and returns the affected row count.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (Result, error) {
	return c.cfg.exec(ctx, sql, args...)
}

// Connect opens a new Session backed by a single shared WebSocket
// connection, for pipelined statements, interactive transactions, and
// batches.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	conn, err := wstransport.Dial(ctx, wstransport.Config{
		Endpoint: c.rawCfg.Endpoint,
		Database: c.rawCfg.Database,
		User:     c.rawCfg.User,
		Password: c.rawCfg.Password,
		Logger:   c.rawCfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Session{
		conn: conn,
		st:   newStatementer(wsTransportAdapter{conn}, c.rawCfg),
	}, nil
}

// httpTransportAdapter adapts *httptransport.Transport to the root
// package's transport interface.
type httpTransportAdapter struct {
	t *httptransport.Transport
}

func (a httpTransportAdapter) Statement(ctx context.Context, kind wire.StatementKind, sql string, params []wire.RawParameter) (statementResponse, error) {
	columns, rows, err := a.t.Statement(ctx, kind, sql, params)
	if err != nil {
		return statementResponse{}, err
	}
	return statementResponse{Columns: columns, Rows: rows}, nil
}

// Close is a no-op: the HTTP transport holds no persistent connection.
func (a httpTransportAdapter) Close() error { return nil }
