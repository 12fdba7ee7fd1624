package saga

import (
	"context"
	"time"

	"example.com/orderfulfillment/internal/apperr"
)

// maxTransitionAttempts bounds the retry of a single status transition
// against a concurrency conflict raised by store.OrderRepository.UpdateStatus.
// These conflicts are a transient race for "ownership" of the order between
// a duplicate saga invocation and a reaper sweep, never a genuine business
// failure — they are retried, not escalated.
const maxTransitionAttempts = 3

// withConflictRetry re-invokes fn up to maxTransitionAttempts times while it
// keeps failing with KindConcurrencyConflict, backing off 100ms * attempt
// between tries (same shape as inventoryengine's warehouse-reservation
// backoff). Any other error, or the final attempt's conflict, is returned.
func withConflictRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if apperr.KindOf(lastErr) != apperr.KindConcurrencyConflict {
			return lastErr
		}
		if attempt < maxTransitionAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}
	}
	return lastErr
}
