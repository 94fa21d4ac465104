package sponsor

import (
	"context"
	"time"
)

// DefaultRetryBaseDelay is the base delay for exponential backoff between attempts
const DefaultRetryBaseDelay = 1 * time.Second

// RetryPolicy decides how many times an outbound call is attempted.
// The zero value and MaxAttempts <= 1 mean a single attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NoRetry returns a policy that attempts every call exactly once
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, BaseDelay: DefaultRetryBaseDelay}
}

// Attempts returns the effective number of attempts
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the backoff before the attempt following attempt (0-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}
	return base * time.Duration(1<<uint(attempt))
}

// Do runs fn until it succeeds, reports the error as not retryable, or the
// attempts are used up. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) (retryable bool, err error)) error {
	attempts := p.Attempts()

	var lastErr error
	for attempt := range attempts {
		retryable, err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable || attempt == attempts-1 {
			return lastErr
		}

		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
