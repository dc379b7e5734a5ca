package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted wraps the last error once MaxAttempts is reached.
var ErrExhausted = errors.New("retry attempts exhausted")

// Class tells Do whether an error may be retried.
type Class int

const (
	// Retryable errors are retried after Delay.
	Retryable Class = iota
	// Fatal errors are returned immediately.
	Fatal
)

// Policy configures Do.
type Policy struct {
	// Delay is the fixed pause between attempts.
	Delay time.Duration

	// MaxAttempts caps the number of calls. 0 means unlimited.
	MaxAttempts int

	// Classify decides whether an error is retryable.
	// If nil, every error is retryable.
	Classify func(error) Class

	// OnRetry is called before each pause, for logging and metrics.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, returns a fatal error, exhausts the
// policy, or ctx is done. A cancelled context returns ctx.Err().
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Retryable }
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if classify(err) == Fatal {
			return err
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if p.Delay <= 0 {
			continue
		}
		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// DoValue is Do for calls that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
