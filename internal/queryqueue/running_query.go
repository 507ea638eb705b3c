// Package queryqueue implements the running-query state machine and the
// FIFO queue that underpins the WebSocket transport: it enforces protocol
// ordering between the server's response stream and the client's concurrent
// callers, buffers rows for a slow consumer, and distinguishes query-local
// errors (reject one query, keep the connection) from protocol-level
// violations (abort every queued query and close the connection).
package queryqueue

import (
	"context"
	"sync"

	"github.com/ppg-community/ppg-go/internal/wire"
)

// Result is what a statement call is waiting for: either the column
// description became available, or the query completed before any
// description arrived (in which case Columns is empty and Rows still yields
// any rows buffered before completion), or it failed before any
// description arrived (in which case Err is set and Rows is nil).
type Result struct {
	Columns []wire.Column
	Rows    *RunningQuery
	Err     error
}

type rowSignal struct {
	values []*string
	done   bool
	err    error
}

// RunningQuery is the per-query state described by the protocol's state
// diagram: start -> awaiting-description -> streaming -> completed/errored.
// It is both the thing the queue dispatches frames into and the row stream
// the caller iterates; those are the same object because the row buffer and
// the parked waiter must be visible to both the dispatcher and the reader
// without copying.
type RunningQuery struct {
	columns   []wire.Column
	described bool
	buffer    [][]*string
	waiter    chan rowSignal
	completed bool
	err       error

	promiseCh   chan Result
	promiseSent bool

	// mu guards everything above. Go, unlike the single-threaded event loop
	// this protocol was designed against, really does run the WebSocket
	// read pump and statement-issuing callers on different goroutines, so
	// the mutex is load-bearing here even though the protocol's own
	// invariants (response frames always apply to the queue head) make the
	// state machine conceptually single-writer.
	mu sync.Mutex
}

func newRunningQuery() *RunningQuery {
	return &RunningQuery{promiseCh: make(chan Result, 1)}
}

// Promise blocks until the statement response for this query is ready:
// columns plus this RunningQuery as the row stream, or a terminal error.
func (q *RunningQuery) Promise(ctx context.Context) (Result, error) {
	select {
	case r := <-q.promiseCh:
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (q *RunningQuery) resolvePromise(r Result) {
	q.mu.Lock()
	if q.promiseSent {
		q.mu.Unlock()
		return
	}
	q.promiseSent = true
	q.mu.Unlock()
	q.promiseCh <- r
}

// Columns returns the finalized column list, valid once Promise has
// resolved.
func (q *RunningQuery) Columns() []wire.Column {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.columns
}

func (q *RunningQuery) onDescription(cols []wire.Column) {
	q.mu.Lock()
	q.columns = cols
	q.described = true
	q.mu.Unlock()
	q.resolvePromise(Result{Columns: cols, Rows: q})
}

func (q *RunningQuery) onDataRow(values []*string) {
	q.mu.Lock()
	if q.completed {
		// Closed or already terminated: the row is discarded as it arrives,
		// per the protocol's lack of a cancel frame.
		q.mu.Unlock()
		return
	}
	if q.waiter != nil {
		w := q.waiter
		q.waiter = nil
		q.mu.Unlock()
		w <- rowSignal{values: values}
		return
	}
	q.buffer = append(q.buffer, values)
	q.mu.Unlock()
}

func (q *RunningQuery) onComplete() {
	q.mu.Lock()
	q.completed = true
	w := q.waiter
	q.waiter = nil
	described := q.described
	q.mu.Unlock()

	if w != nil {
		w <- rowSignal{done: true}
	}
	if !described {
		q.resolvePromise(Result{Rows: q})
	}
}

func (q *RunningQuery) onError(err error) {
	q.mu.Lock()
	q.completed = true
	q.err = err
	w := q.waiter
	q.waiter = nil
	described := q.described
	q.mu.Unlock()

	if w != nil {
		w <- rowSignal{err: err}
		return
	}
	if !described {
		q.resolvePromise(Result{Err: err})
	}
}

// Next returns the next row, (nil, false, nil) at end of stream, or an
// error. It parks at most one waiter at a time: the invariant that no row
// is ever buffered ahead of a parked waiter is maintained by onDataRow
// checking for a waiter before appending to the buffer.
func (q *RunningQuery) Next(ctx context.Context) ([]*string, bool, error) {
	q.mu.Lock()
	if len(q.buffer) > 0 {
		v := q.buffer[0]
		q.buffer = q.buffer[1:]
		q.mu.Unlock()
		return v, true, nil
	}
	if q.completed {
		err := q.err
		q.mu.Unlock()
		return nil, false, err
	}

	ch := make(chan rowSignal, 1)
	q.waiter = ch
	q.mu.Unlock()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, false, r.err
		}
		if r.done {
			return nil, false, nil
		}
		return r.values, true, nil
	case <-ctx.Done():
		q.mu.Lock()
		if q.waiter == ch {
			q.waiter = nil
		}
		q.mu.Unlock()
		return nil, false, ctx.Err()
	}
}

// Collect drains every remaining row. Once the stream is exhausted it
// returns an empty slice on every subsequent call, including the second
// Collect call in a row — the idempotence property required by the row
// stream's restartable-once contract.
func (q *RunningQuery) Collect(ctx context.Context) ([][]*string, error) {
	var out [][]*string
	for {
		row, ok, err := q.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, row)
	}
}

// Close marks the query drained without waiting for a server-sent terminal
// frame: the cancellation-safety property requires that after Close, Next
// reports end of stream immediately, so rows already buffered are discarded.
// The server-side execution is not aborted (the protocol has no cancel
// frame); any further rows the server sends are dropped by onDataRow's
// completed check and never read.
func (q *RunningQuery) Close() error {
	q.mu.Lock()
	q.completed = true
	q.buffer = nil
	w := q.waiter
	q.waiter = nil
	q.mu.Unlock()
	if w != nil {
		w <- rowSignal{done: true}
	}
	return nil
}
