package ppg

import (
	"context"
	"fmt"
)

// Transaction opens a fresh session, runs "BEGIN", invokes fn with that
// session's statement interface, and on fn's successful return runs
// "COMMIT"; on any error from fn runs "ROLLBACK" (best-effort) and
// re-surfaces fn's original error. The session is disposed on every exit
// path, including a panic from fn.
func (c *Client) Transaction(ctx context.Context, fn func(ctx context.Context, sess *Session) error) error {
	sess, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	return runInTransaction(ctx, sess, fn)
}

func runInTransaction(ctx context.Context, sess *Session, fn func(ctx context.Context, sess *Session) error) (err error) {
	if _, err = sess.Exec(ctx, "BEGIN"); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_, _ = sess.Exec(ctx, "ROLLBACK")
			panic(p)
		}
	}()

	if err = fn(ctx, sess); err != nil {
		if _, rollbackErr := sess.Exec(ctx, "ROLLBACK"); rollbackErr != nil {
			return fmt.Errorf("%w (rollback also failed: %v)", err, rollbackErr)
		}
		return err
	}

	if _, err = sess.Exec(ctx, "COMMIT"); err != nil {
		return err
	}
	return nil
}
