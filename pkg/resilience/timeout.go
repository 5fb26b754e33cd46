package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when fn outlives its timeout.
var ErrTimeout = errors.New("operation timed out")

// WithTimeout runs fn with a derived deadline and returns ErrTimeout as soon as it
// passes, even if fn ignores its context. A non-positive timeout returns ErrTimeout
// without calling fn.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return ErrTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(runCtx) }()

	select {
	case err := <-done:
		return err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return ErrTimeout
		}
		return runCtx.Err()
	}
}
