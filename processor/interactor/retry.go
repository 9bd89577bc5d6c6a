package interactor

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryTransient runs operation, retrying with exponential backoff as
// long as transient reports the error as a connection-level failure.
// Any other error aborts immediately. Attempts are capped so a dead
// backend surfaces as an error instead of blocking the batch.
func retryTransient(ctx context.Context, cooldown time.Duration, retries int, transient func(error) bool, operation func() error) error {
	wrapped := func() error {
		err := operation()
		if err != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cooldown

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx))
}
