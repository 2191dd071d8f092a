package utils

import (
	"context"
	"math/rand"
	"time"
)

// Retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay, doubling each attempt, with up to 20% random jitter added so
// concurrent callers do not retry in lockstep. It returns nil on the first
// successful call, or the last error if all attempts fail. Context
// cancellation is respected between attempts.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(withJitter(delay)):
			}
			delay *= 2
		}
	}

	return err
}

func withJitter(d time.Duration) time.Duration {
	span := int64(d) / 5
	if span <= 0 {
		return d
	}
	jitter := time.Duration(rand.Int63n(span))
	return d + jitter
}
