package queryqueue

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ppg-community/ppg-go/internal/ppgerr"
	"github.com/ppg-community/ppg-go/internal/wire"
)

// Queue is the ordered sequence of running queries described by §4.4: the
// frame at the head of the server's response stream always belongs to the
// query at the head of the queue. New queries are appended on Enqueue;
// Dispatch pops the head exactly once, on CommandComplete or ErrorFrame.
type Queue struct {
	mu     sync.Mutex
	items  []*RunningQuery
	logger *zap.Logger
}

func New(logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{logger: logger}
}

// Enqueue appends a new running query to the tail of the queue. Call this
// before writing the corresponding frames so a response that arrives before
// the write call returns still finds a queue entry waiting for it.
func (q *Queue) Enqueue() *RunningQuery {
	rq := newRunningQuery()
	q.mu.Lock()
	q.items = append(q.items, rq)
	q.mu.Unlock()
	return rq
}

func (q *Queue) head() *RunningQuery {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *Queue) popHead() {
	q.mu.Lock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
	q.mu.Unlock()
}

// Len reports how many queries are still pending a terminal frame.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dispatch applies one inbound frame to the head of the queue. An
// unrecognized frame shape here — unlike the HTTP transport's
// forward-compatible NDJSON parser — is a protocol violation: the caller is
// expected to respond by calling AbortAll and closing the connection.
func (q *Queue) Dispatch(frame wire.InboundFrame) error {
	head := q.head()
	if head == nil {
		return ppgerr.NewProtocolError("websocket", "response frame received with no pending query")
	}

	switch frame.Kind {
	case wire.InboundDescription:
		head.onDescription(frame.Description.Columns)
		return nil

	case wire.InboundDataRow:
		head.onDataRow(frame.Row.Values)
		return nil

	case wire.InboundComplete:
		head.onComplete()
		q.popHead()
		return nil

	case wire.InboundError:
		head.onError(&ppgerr.DatabaseError{
			Message: frame.Error.Message,
			Code:    frame.Error.Code,
			Details: frame.Error.Extra,
		})
		q.popHead()
		return nil

	default:
		q.logger.Error("unrecognized inbound frame shape, aborting connection")
		return ppgerr.NewProtocolError("websocket", "unrecognized frame shape")
	}
}

// Reject aborts a single still-pending query — typically because the send
// that was supposed to produce a response for it failed — without touching
// any other queued query, and removes it from the queue wherever it
// currently sits.
func (q *Queue) Reject(rq *RunningQuery, err error) {
	q.mu.Lock()
	for i, item := range q.items {
		if item == rq {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	q.mu.Unlock()
	rq.onError(err)
}

// AbortAll rejects every still-pending query with err and empties the
// queue. Called when the connection observes a fatal error: a transport
// onerror/onclose, a binary message on the text-only read path, or a
// protocol violation from Dispatch.
func (q *Queue) AbortAll(err error) {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	for _, rq := range items {
		rq.onError(err)
	}
}
