// Package httptransport implements the request/response HTTP transport: a
// streaming multipart/form-data request per statement, and an
// application/x-ndjson response parsed into a columns descriptor plus a
// lazy row stream.
package httptransport

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ppg-community/ppg-go/internal/pkg/logging"
	"github.com/ppg-community/ppg-go/internal/ppgerr"
	"github.com/ppg-community/ppg-go/internal/wire"
)

// Config holds everything a Transport needs to issue a statement.
type Config struct {
	Endpoint  *url.URL
	Database  string
	User      string
	Password  string
	Keepalive bool
	Logger    *zap.Logger
	Client    *http.Client
}

// Transport issues one independent HTTP request per statement; it holds no
// per-statement state between calls.
type Transport struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

func New(cfg Config) *Transport {
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{DisableKeepAlives: !cfg.Keepalive},
		}
	}
	return &Transport{cfg: cfg, client: client, logger: logging.OrNop(cfg.Logger)}
}

// Statement POSTs one statement's frames and returns its finalized columns
// plus a row stream primed to read the rest of the response lazily.
func (t *Transport) Statement(ctx context.Context, kind wire.StatementKind, sql string, params []wire.RawParameter) ([]wire.Column, *RowStream, error) {
	desc, extended, err := wire.Encode(kind, sql, params)
	if err != nil {
		return nil, nil, err
	}

	req, err := t.buildRequest(ctx, desc, extended)
	if err != nil {
		return nil, nil, err
	}

	t.logger.Debug("http statement request", zap.String("kind", kind.String()))
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("ppg: http transport request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, nil, &ppgerr.HTTPResponseError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if resp.Body == nil {
		return nil, nil, ppgerr.NewProtocolError("http", "response body is nil")
	}

	stream := newRowStream(resp.Body)
	columns, err := stream.prime()
	if err != nil {
		stream.Close()
		return nil, nil, err
	}

	t.logger.Debug("http statement response primed", zap.Int("columns", len(columns)))
	return columns, stream, nil
}

func (t *Transport) buildRequest(ctx context.Context, desc wire.QueryDescriptor, extended []wire.ExtendedFrame) (*http.Request, error) {
	boundary := newBoundary()

	pr, pw := io.Pipe()
	go func() {
		if err := writeMultipartBody(pw, boundary, desc, extended); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.Close()
	}()

	u := *t.cfg.Endpoint
	u.Path = strings.TrimSuffix(u.Path, "/") + "/db/query_v2"
	if t.cfg.Database != "" {
		q := u.Query()
		q.Set("db", t.cfg.Database)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), pr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", fmt.Sprintf(`multipart/form-data; profile=%q; boundary=%s`, string(wire.URNQueryProfile), boundary))
	req.Header.Set("Authorization", "Basic "+basicAuth(t.cfg.User, t.cfg.Password))
	req.ContentLength = -1 // streaming body, size unknown up front

	return req, nil
}

func basicAuth(user, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
}
