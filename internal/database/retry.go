package database

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/quizbank/quizbank/pkg/logger"
)

// Retry calls connect up to attempts times with doubling backoff, to ride out
// startup races with the database container.
func Retry[T any](ctx context.Context, name string, attempts int, initial time.Duration, connect func(context.Context) (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.RandomizationFactor = 0
	b.Multiplier = 2

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		return connect(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warnf("attempt %d/%d: failed to connect to %s: %v (retrying in %s)", attempt, attempts, name, err, next)
		}),
	)
}
