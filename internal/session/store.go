// Package session provides the opaque admin-session store used by the
// authorizer middleware gating admin-only compensation operations. There
// is no login/issuance endpoint in this system — sessions are provisioned
// out of band rather than minted by a JWT signer.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
)

const keyPrefix = "session:"

// Store persists Session rows as TTL-bound Redis strings.
type Store struct {
	redis *redis.Client
}

// NewStore создаёт хранилище admin-сессий поверх Redis.
func NewStore(client *redis.Client) *Store {
	return &Store{redis: client}
}

// Create registers a session token with the given TTL. Used by out-of-band
// provisioning tooling, not by any HTTP endpoint of this system.
func (s *Store) Create(ctx context.Context, sess *domain.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "сериализация сессии", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return apperr.New(apperr.KindValidationFailure, "сессия с истёкшим сроком действия")
	}
	if err := s.redis.Set(ctx, keyPrefix+sess.SessionToken, payload, ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "сохранение сессии", err)
	}
	return nil
}

// Get looks up a session by its token. Returns apperr.ErrSessionNotFound if
// absent or expired (Redis TTL already purged it).
func (s *Store) Get(ctx context.Context, token string) (*domain.Session, error) {
	raw, err := s.redis.Get(ctx, keyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.ErrSessionNotFound
		}
		return nil, apperr.Wrap(apperr.KindFatalInternal, "чтение сессии", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "разбор сессии", err)
	}
	return &sess, nil
}

// Delete invalidates a session immediately (logout / revocation).
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, keyPrefix+token).Err(); err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "удаление сессии", err)
	}
	return nil
}
