package domain

import "time"

// IdempotencyStatus — состояние строки идемпотентности.
type IdempotencyStatus string

const (
	IdempotencyInProgress IdempotencyStatus = "IN_PROGRESS"
	IdempotencyCompleted  IdempotencyStatus = "COMPLETED"
	IdempotencyFailed     IdempotencyStatus = "FAILED"
)

// IdempotencyRecord — запись в субстрате идемпотентности. Result хранится
// как сериализованный JSON, непрозрачный для стора.
type IdempotencyRecord struct {
	Key       string
	Operation string
	Status    IdempotencyStatus
	Result    []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}
