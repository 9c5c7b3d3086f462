// Package retry runs an operation again, with exponential back-off, when it
// fails with a transient error.
//
// Usage:
//
//	err := retry.DefaultPolicy.Do(ctx, "send reply", func(ctx context.Context) error {
//	    return client.Send(ctx, msg)
//	})
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Policy controls how an operation is retried.
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean a single call.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt; each later wait
	// doubles up to MaxDelay.
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable classifies errors. When nil every error except context
	// cancellation is retried.
	Retryable func(err error) bool
	Logger    *slog.Logger
}

// DefaultPolicy suits short network calls.
var DefaultPolicy = Policy{
	MaxAttempts:  3,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx ends. It returns the last error from fn, joined with the
// context error when ctx ended first.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	delay := p.InitialDelay
	if delay <= 0 {
		delay = DefaultPolicy.InitialDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultPolicy.MaxDelay
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(lastErr, err)
		}
		lastErr = fn(ctx)
		if lastErr == nil || !p.retryable(lastErr) || attempt == attempts {
			return lastErr
		}

		logger.Debug("retry: attempt failed", "op", op, "attempt", attempt, "max", attempts, "delay", delay, "err", lastErr)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(lastErr, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, maxDelay)
	}
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}
