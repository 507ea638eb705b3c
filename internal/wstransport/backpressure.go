package wstransport

import (
	"context"
	"time"
)

// bufferedAmountThreshold is the 1 MiB ceiling above which a send waits for
// the underlying socket to drain before writing more.
const bufferedAmountThreshold = 1 << 20

const (
	backoffStart = 5 * time.Millisecond
	backoffCap   = 100 * time.Millisecond
)

// bufferedAmountReporter is implemented by transports that expose how many
// bytes are queued for write, analogous to a browser WebSocket's
// bufferedAmount. gorilla/websocket's *websocket.Conn does not implement
// it — a plain TCP connection has no userspace write buffer to report — so
// waitForDrain is a no-op for it, matching the spec's "if the platform does
// not expose buffer size, do not wait". The interface exists so a transport
// that does track outstanding bytes (or a test fake) can opt in.
type bufferedAmountReporter interface {
	BufferedAmount() int
}

// waitForDrain blocks, with exponential backoff starting at 5ms and capped
// at 100ms, until conn's buffered amount drops at or below the threshold.
// If conn does not report a buffered amount, it returns immediately.
func waitForDrain(ctx context.Context, conn any) error {
	reporter, ok := conn.(bufferedAmountReporter)
	if !ok {
		return nil
	}

	backoff := backoffStart
	for reporter.BufferedAmount() > bufferedAmountThreshold {
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > backoffCap {
			backoff = backoffCap
		}
	}
	return nil
}
