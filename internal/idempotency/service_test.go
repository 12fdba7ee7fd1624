package idempotency_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/idempotency"
)

func newTestService(t *testing.T) *idempotency.Service {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := idempotency.NewStore(client, 0)
	return idempotency.NewService(store)
}

func TestExecuteOnce_RunsFnOnceAndCachesResult(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	calls := 0

	fn := func(ctx context.Context) (any, error) {
		calls++
		return map[string]string{"status": "ok"}, nil
	}

	first, err := svc.ExecuteOnce(ctx, "order:O1:reserve", "reserve", fn)
	require.NoError(t, err)

	second, err := svc.ExecuteOnce(ctx, "order:O1:reserve", "reserve", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.JSONEq(t, string(first), string(second))
}

func TestExecuteOnce_ConcurrentCallersGetCachedOrConcurrentInProgress(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	release := make(chan struct{})
	var calls int32
	var losersDone int32
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "done", nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := svc.ExecuteOnce(ctx, "order:O1:reserve", "reserve", fn)
			if err != nil {
				atomic.AddInt32(&losersDone, 1)
			}
			errs[idx] = err
		}(i)
	}

	// The loser callers never invoke fn — they return as soon as tryAcquire
	// observes the winner's IN_PROGRESS lease. Wait for all four to finish
	// before releasing the winner, so the count below can't race.
	for atomic.LoadInt32(&losersDone) < 4 {
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls)
	concurrentCount := 0
	for _, err := range errs {
		if err != nil {
			assert.Equal(t, apperr.KindDuplicateOperation, apperr.KindOf(err))
			concurrentCount++
		}
	}
	assert.Equal(t, 4, concurrentCount)
}

func TestExecuteOnce_FailedAttemptIsRetryable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := svc.ExecuteOnce(ctx, "order:O1:verify", "verify", func(ctx context.Context) (any, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	result, err := svc.ExecuteOnce(ctx, "order:O1:verify", "verify", func(ctx context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)

	var decoded string
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Equal(t, "recovered", decoded)
}
