package inventoryengine

import (
	"context"
	"time"
)

// sleepBackoff waits 100·n ms before the next reservation retry, honoring
// context cancellation so a caller with a tight deadline is not stuck
// waiting out the full backoff.
func sleepBackoff(ctx context.Context, attempt int) {
	timer := time.NewTimer(time.Duration(attempt) * 100 * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
