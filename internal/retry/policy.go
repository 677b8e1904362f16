// Package retry provides the bounded retry-with-backoff policy that wraps
// every external call the pipeline makes. Classification comes from the
// services error taxonomy: retryable markers back off and re-attempt, fatal
// markers return immediately.
package retry

import (
	"context"
	"fmt"
	"time"

	"distill/internal/services"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 30 * time.Second
)

// Policy controls attempt count and backoff timing. The zero value is unusable;
// use Default or fill every field.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Sleep overrides how backoff waits are performed (tests inject a recorder).
	// When nil, a context-aware timer sleep is used.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the policy used for both extraction and distillation calls:
// 3 attempts, 1s base delay, doubling per attempt (1s, 2s waits between the
// three attempts).
func Default() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

// Do runs fn until it succeeds, fails fatally, or exhausts the attempt budget.
// The last error is returned unchanged so marker classification survives.
func (p Policy) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !services.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.delayFor(attempt)
		if after := services.RetryAfter(lastErr); after > 0 {
			delay = p.cap(after)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", operation, attempts, lastErr)
}

// DoValue is Do for operations that produce a result.
func DoValue[T any](ctx context.Context, p Policy, operation string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, operation, func(ctx context.Context) error {
		var innerErr error
		result, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// delayFor computes baseDelay * 2^attempt, capped at MaxDelay. attempt is the
// zero-based index of the attempt that just failed.
func (p Policy) delayFor(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay() {
			return p.maxDelay()
		}
	}
	return p.cap(delay)
}

func (p Policy) maxDelay() time.Duration {
	if p.MaxDelay > 0 {
		return p.MaxDelay
	}
	return defaultMaxDelay
}

func (p Policy) cap(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if max := p.maxDelay(); delay > max {
		return max
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
