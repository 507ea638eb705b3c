// Package ppgerr defines the error taxonomy shared by every transport and by
// the statement layer: caller misuse, transport failures, and server-reported
// SQL errors are distinct types so callers can branch with errors.As.
package ppgerr

import "fmt"

// ValidationError is caller-side misuse: an unsupported parameter shape, a
// malformed connection string, or missing credentials.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "ppg: validation error: " + e.Message
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// HTTPResponseError is a non-2xx response from the HTTP transport.
type HTTPResponseError struct {
	StatusCode int
	Body       string
}

func (e *HTTPResponseError) Error() string {
	return fmt.Sprintf("ppg: http response error: status %d: %s", e.StatusCode, e.Body)
}

// WebSocketError is a transport-layer failure on the WebSocket connection,
// optionally carrying the close code/reason the server or network reported.
type WebSocketError struct {
	Message string
	Code    int
	Reason  string
}

func (e *WebSocketError) Error() string {
	if e.Code == 0 && e.Reason == "" {
		return "ppg: websocket error: " + e.Message
	}
	return fmt.Sprintf("ppg: websocket error: %s (code=%d reason=%q)", e.Message, e.Code, e.Reason)
}

// DatabaseError is a server-reported SQL error: a SQLSTATE code plus a
// free-form detail map. Code and Message are excluded from Details to avoid
// duplicating them.
type DatabaseError struct {
	Message string
	Code    string
	Details map[string]any
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("ppg: database error [%s]: %s", e.Code, e.Message)
}

// ProtocolError marks an unexpected frame ordering, a missing required field,
// a binary message on a text-only read path, or a malformed exec row.
// Transport identifies which layer detected the violation: "http" or
// "websocket" for the transports, or "statement" for a malformed exec row,
// which the statement layer reports without naming the transport it came
// over. Protocol errors on the WebSocket transport are fatal to the whole
// connection, not just the one statement.
type ProtocolError struct {
	Transport string
	Message   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ppg: protocol error (%s): %s", e.Transport, e.Message)
}

func NewProtocolError(transport, format string, args ...any) *ProtocolError {
	return &ProtocolError{Transport: transport, Message: fmt.Sprintf(format, args...)}
}
