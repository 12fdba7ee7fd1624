// Package idempotency implements the ExecuteOnce gate that every
// side-effectful saga step, webhook handler and inventory mutation runs
// through, backed by Redis conditional writes rather than a SQL table so
// that rows expire on their own via TTL.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
)

// DefaultTTL is the idempotency record lifetime applied when the caller
// does not override it.
const DefaultTTL = 7 * 24 * time.Hour

type record struct {
	Operation string                 `json:"operation"`
	Status    domain.IdempotencyStatus `json:"status"`
	Result    json.RawMessage        `json:"result,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Store persists IdempotencyRecord rows as Redis strings keyed by the
// idempotency key itself, JSON-encoded.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore создаёт хранилище идемпотентности поверх Redis.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{redis: client, ttl: ttl}
}

// tryAcquire attempts to create the key in IN_PROGRESS state with a
// does-not-exist precondition (`SET key val NX`). Returns the record that
// now occupies the key — either the one we just wrote, or whatever was
// already there when the precondition failed.
func (s *Store) tryAcquire(ctx context.Context, key, operation string) (*record, bool, error) {
	rec := record{Operation: operation, Status: domain.IdempotencyInProgress, CreatedAt: time.Now()}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindFatalInternal, "сериализация idempotency-записи", err)
	}

	ok, err := s.redis.SetNX(ctx, key, payload, s.ttl).Result()
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindFatalInternal, "создание idempotency-ключа", err)
	}
	if ok {
		return &rec, true, nil
	}

	existing, err := s.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) get(ctx context.Context, key string) (*record, error) {
	raw, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.KindFatalInternal, "чтение idempotency-ключа", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "разбор idempotency-записи", err)
	}
	return &rec, nil
}

// reacquireAfterFailure overwrites a FAILED record with a fresh IN_PROGRESS
// lease, unconditionally: SETNX cannot do this since the key still exists,
// and the caller has already established (via tryAcquire) that the current
// occupant is FAILED, not a live COMPLETED/IN_PROGRESS lease.
func (s *Store) reacquireAfterFailure(ctx context.Context, key, operation string) error {
	rec := record{Operation: operation, Status: domain.IdempotencyInProgress, CreatedAt: time.Now()}
	payload, err := json.Marshal(rec)
	if err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "сериализация повторной попытки idempotency", err)
	}
	if err := s.redis.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "повторный захват idempotency-ключа", err)
	}
	return nil
}

// complete writes status=COMPLETED with the serialized result, overwriting
// whatever is at key (`SET` without NX — we hold the IN_PROGRESS lease).
func (s *Store) complete(ctx context.Context, key, operation string, result json.RawMessage) error {
	rec := record{Operation: operation, Status: domain.IdempotencyCompleted, Result: result, CreatedAt: time.Now()}
	payload, err := json.Marshal(rec)
	if err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "сериализация результата idempotency", err)
	}
	if err := s.redis.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "запись результата idempotency", err)
	}
	return nil
}

// fail marks the key FAILED, permitting a later retry to re-acquire it.
func (s *Store) fail(ctx context.Context, key, operation string) error {
	rec := record{Operation: operation, Status: domain.IdempotencyFailed, CreatedAt: time.Now()}
	payload, err := json.Marshal(rec)
	if err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "сериализация сбоя idempotency", err)
	}
	if err := s.redis.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "запись сбоя idempotency", err)
	}
	return nil
}
