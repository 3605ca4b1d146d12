// Package retry wraps calls to external collaborators in a bounded,
// fixed-delay retry loop.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// Policy retries transient failures a fixed number of times with a fixed
// delay between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	// AttemptTimeout bounds each attempt. Zero leaves the caller's deadline
	// as the only bound.
	AttemptTimeout time.Duration
	// Retryable classifies errors; nil means domain.IsTransient.
	Retryable func(error) bool
}

// New returns a Policy with the transient classifier.
func New(maxAttempts int, delay, attemptTimeout time.Duration) *Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Policy{MaxAttempts: maxAttempts, Delay: delay, AttemptTimeout: attemptTimeout}
}

// Do runs op until it succeeds, fails permanently, the attempts are spent or
// ctx is done. Exhaustion returns the last error wrapped with the attempt
// count so callers can still match it with errors.Is.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute is Do for operations returning a value.
func Execute[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = domain.IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := runAttempt(ctx, p.AttemptTimeout, op)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry: attempt %d: %w", attempt, ctx.Err())
		}
		if !retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry: waiting after attempt %d: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}
	return zero, fmt.Errorf("retry: gave up after %d attempts: %w", attempts, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(actx)
}
