package idempotency

import (
	"context"
	"encoding/json"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
)

// Fn is the side-effectful closure gated by ExecuteOnce. Its return value is
// JSON-serialized and cached against the key.
type Fn func(ctx context.Context) (any, error)

// Service implements the ExecuteOnce contract: run a side-effectful
// operation exactly once per key, regardless of how many callers race to
// invoke it or how many times a single caller retries.
type Service struct {
	store *Store
}

// NewService создаёт сервис идемпотентности поверх store.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// ExecuteOnce runs fn at most once for a given key:
//  1. If key is COMPLETED, return the cached result without calling fn.
//  2. Try to acquire key as IN_PROGRESS under a does-not-exist precondition.
//     Lost race against COMPLETED -> return its result. Lost race against
//     IN_PROGRESS -> apperr.ErrConcurrentInProgress. Lost race against
//     FAILED -> proceed (retry allowed), racing replaces the FAILED record.
//  3. Invoke fn. Success -> COMPLETED with serialized result. Error ->
//     FAILED, propagate the error.
func (s *Service) ExecuteOnce(ctx context.Context, key, operation string, fn Fn) (json.RawMessage, error) {
	rec, acquired, err := s.store.tryAcquire(ctx, key, operation)
	if err != nil {
		return nil, err
	}

	if !acquired {
		switch rec.Status {
		case domain.IdempotencyCompleted:
			return rec.Result, nil
		case domain.IdempotencyInProgress:
			return nil, apperr.ErrConcurrentInProgress
		case domain.IdempotencyFailed:
			// Fall through and retry: re-acquire the lease explicitly since
			// a FAILED record does not block a fresh SETNX by itself (the
			// key still exists, so SETNX would fail again) — overwrite it
			// directly as the new IN_PROGRESS owner.
			if err := s.store.reacquireAfterFailure(ctx, key, operation); err != nil {
				return nil, err
			}
		}
	}

	result, callErr := fn(ctx)
	if callErr != nil {
		if failErr := s.store.fail(ctx, key, operation); failErr != nil {
			return nil, failErr
		}
		return nil, callErr
	}

	payload, err := json.Marshal(result)
	if err != nil {
		_ = s.store.fail(ctx, key, operation)
		return nil, apperr.Wrap(apperr.KindFatalInternal, "сериализация результата шага", err)
	}

	if err := s.store.complete(ctx, key, operation, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
