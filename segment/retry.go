package segment

import (
	"context"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// Retry calls fn until it succeeds or MaxAttempts calls have failed, waiting
// Delay between attempts. onFail sees every failed attempt (1-based).
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error), onFail func(attempt int, err error)) (T, int, error) {
	var lastErr error
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if onFail != nil {
			onFail(attempt, err)
		}

		// Don't wait after the last attempt
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, attempt, ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}

	return zero, attempts, lastErr
}
