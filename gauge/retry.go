package gauge

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds every retrying operation. The worst case duration of an
// operation is MaxAttempts * (CleanTimeout + ResponseTimeout).
type RetryPolicy struct {
	MaxAttempts     int
	CleanTimeout    time.Duration
	ResponseTimeout time.Duration
	// SkipFirstClean skips the stream clean before the first attempt. It
	// applies to all operations alike.
	SkipFirstClean bool
}

// attempt is one send/collect/validate cycle. It returns nil on success or
// an error wrapping one of the sentinel errors.
type attempt func() error

// retry runs fn until it succeeds or the policy is exhausted, cleaning the
// stream between attempts. The context is checked only between attempts.
func (g *Gauge) retry(ctx context.Context, op Op, fn attempt) error {
	var err error
	for g.attempts < g.policy.MaxAttempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			g.lastErr = CodeOf(ctxErr)
			g.observe(op)
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		if g.attempts > 0 || !g.policy.SkipFirstClean {
			g.clean()
		}
		g.attempts++

		if err = fn(); err == nil {
			g.lastErr = CodeOK
			g.observe(op)
			return nil
		}
		g.lastErr = CodeOf(err)
		g.logger.Debug("attempt failed",
			"op", op,
			"attempt", g.attempts,
			"code", g.lastErr,
			"error", err,
			"response", g.buf.String(),
		)
	}

	g.observe(op)
	g.logger.Warn("operation failed", "op", op, "attempts", g.attempts, "code", g.lastErr, "error", err)
	return fmt.Errorf("%s failed after %d attempts: %w", op, g.attempts, err)
}
