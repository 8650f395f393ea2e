package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout imposes a hard deadline on fn. fn receives a context cancelled
// at the deadline and should return promptly; if it does not, WithTimeout
// returns anyway and the call finishes abandoned in the background.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- fn(callCtx)
	}()

	select {
	case err := <-errc:
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: cancelled: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w (limit %v)", name, context.DeadlineExceeded, timeout)
	}
}
