package replay

import (
	"context"
	"time"
)

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// maxRetries is exhausted. fn is told whether its attempt is the last one.
// onRetry, if set, sees each error that is about to be retried. It returns
// the number of attempts made.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, retryable func(error) bool, onRetry func(error), fn func(ctx context.Context, final bool) error) (int, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx, attempt >= maxRetries)
		if err == nil {
			return attempt + 1, nil
		}
		if attempt >= maxRetries || (retryable != nil && !retryable(err)) {
			return attempt + 1, err
		}
		if onRetry != nil {
			onRetry(err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
