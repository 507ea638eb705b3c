package httptransport

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/ppg-community/ppg-go/internal/ppgerr"
	"github.com/ppg-community/ppg-go/internal/wire"
)

const maxNDJSONLine = 16 * 1024 * 1024

// RowStream is a lazy pull parser over one statement's NDJSON response
// body. It is restartable once: callers may iterate element-by-element and
// then Collect the rest; once exhausted, further reads report end of
// stream and a second Collect call returns nothing.
type RowStream struct {
	scanner *bufio.Scanner
	body    io.Closer

	pending    []*string
	hasPending bool
	done       bool
	err        error
}

func newRowStream(body io.ReadCloser) *RowStream {
	s := bufio.NewScanner(body)
	s.Buffer(make([]byte, 64*1024), maxNDJSONLine)
	return &RowStream{scanner: s, body: body}
}

// prime reads frames until the first DataRowDescription (capturing its
// columns), until a terminal frame, or until a DataRow arrives before any
// description — in which case that row is stashed as pending and replayed
// as the first result of Next. The transport calls this once, synchronously,
// before returning the statement response, so columns are available before
// the caller ever touches the row stream.
func (s *RowStream) prime() ([]wire.Column, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		frame, err := wire.ClassifyInbound([]byte(line))
		if err != nil {
			s.fail(err)
			return nil, err
		}
		switch frame.Kind {
		case wire.InboundDescription:
			return frame.Description.Columns, nil
		case wire.InboundDataRow:
			s.pending = frame.Row.Values
			s.hasPending = true
			return nil, nil
		case wire.InboundComplete:
			s.done = true
			return nil, nil
		case wire.InboundError:
			dbErr := &ppgerr.DatabaseError{Message: frame.Error.Message, Code: frame.Error.Code, Details: frame.Error.Extra}
			s.fail(dbErr)
			return nil, dbErr
		default:
			continue // unrecognized shapes are ignored for forward compatibility
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.fail(err)
		return nil, err
	}
	s.done = true
	return nil, nil
}

// Next returns the next row, or (nil, false, nil) at a clean end of stream,
// or an error raised by a trailing ErrorFrame. ctx is accepted for
// interface symmetry with the WebSocket transport's row stream; HTTP
// decoding is synchronous and does not block on it.
func (s *RowStream) Next(_ context.Context) ([]*string, bool, error) {
	if s.hasPending {
		v := s.pending
		s.pending = nil
		s.hasPending = false
		return v, true, nil
	}
	if s.done {
		return nil, false, s.err
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		frame, err := wire.ClassifyInbound([]byte(line))
		if err != nil {
			s.fail(err)
			return nil, false, err
		}
		switch frame.Kind {
		case wire.InboundDataRow:
			return frame.Row.Values, true, nil
		case wire.InboundComplete:
			s.done = true
			return nil, false, nil
		case wire.InboundError:
			dbErr := &ppgerr.DatabaseError{Message: frame.Error.Message, Code: frame.Error.Code, Details: frame.Error.Extra}
			s.fail(dbErr)
			return nil, false, dbErr
		default:
			continue
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.fail(err)
		return nil, false, err
	}
	s.done = true
	return nil, false, nil
}

// Collect drains every remaining row. Idempotent: once the stream is
// exhausted, subsequent calls return an empty slice.
func (s *RowStream) Collect(ctx context.Context) ([][]*string, error) {
	var out [][]*string
	for {
		row, ok, err := s.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}

// Close releases the underlying response body, satisfying the
// cancellation-safety property: after Close, Next reports end of stream
// and no further reads hit the network.
func (s *RowStream) Close() error {
	s.done = true
	s.pending = nil
	s.hasPending = false
	return s.body.Close()
}

func (s *RowStream) fail(err error) {
	s.done = true
	s.err = err
}
