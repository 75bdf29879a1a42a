// Package retry provides bounded retry loops for operations against
// dependencies that are expected to recover on their own.
// This is part of the platform layer and contains no business logic.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Do runs fn up to attempts times, waiting attempt*attempt*baseDelay
// between tries. Intended for startup dependencies (database connects,
// migrations) where early failures are usually transient.
func Do(ctx context.Context, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	return run(ctx, name, attempts, fn, func(attempt int) time.Duration {
		return time.Duration(attempt*attempt) * baseDelay
	})
}

// Fixed runs fn up to attempts times with a constant delay between
// tries. Intended for short in-request verify loops where the remote
// system needs a moment to settle.
func Fixed(ctx context.Context, name string, attempts int, delay time.Duration, fn func() error) error {
	return run(ctx, name, attempts, fn, func(int) time.Duration {
		return delay
	})
}

func run(ctx context.Context, name string, attempts int, fn func() error, delayFor func(attempt int) time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s interrupted: %w", name, ctx.Err())
		case <-time.After(delayFor(attempt)):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, err)
}
