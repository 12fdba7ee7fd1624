// Package notification delivers order-confirmation and abandoned-cart
// reminder emails through the outbox pattern (pkg/outbox): a single
// "notification" aggregate type feeding the "notifications" Kafka topic,
// so that enqueuing a message survives a process crash between transition
// and delivery.
package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/pkg/logger"
	"example.com/orderfulfillment/pkg/outbox"
)

// Event types queued onto the notifications topic.
const (
	EventOrderConfirmation  = "order.confirmation"
	EventAbandonedCartRemind = "order.abandoned_cart_reminder"
)

// envelope is the JSON payload carried on the outbox row, decoded by the
// consuming Sender.
type envelope struct {
	EventType  string    `json:"eventType"`
	OrderID    string    `json:"orderId"`
	CustomerID string    `json:"customerId"`
	Total      int64     `json:"total"`
	QueuedAt   time.Time `json:"queuedAt"`
}

// Service enqueues best-effort notification events. Enqueue failures are
// logged, never escalated to callers as fatal saga or reaper errors.
type Service struct {
	outbox outbox.OutboxRepository
	topic  string
	config Config
}

// Config carries the sender address and a feature flag mirroring
// pkg/config.NotificationConfig.
type Config struct {
	SenderAddress string
	Enabled       bool
}

// NewService создаёт сервис уведомлений поверх outbox-репозитория.
func NewService(repo outbox.OutboxRepository, topic string, cfg Config) *Service {
	return &Service{outbox: repo, topic: topic, config: cfg}
}

// NotifyOrderConfirmation queues the order-confirmation email sent by the
// SendNotification saga step.
func (s *Service) NotifyOrderConfirmation(ctx context.Context, order *domain.Order) {
	s.enqueue(ctx, order, EventOrderConfirmation)
}

// NotifyAbandonedCartReminder queues the one-time reminder sent by the
// reaper at (TIMEOUT - 5min).
func (s *Service) NotifyAbandonedCartReminder(ctx context.Context, order *domain.Order) {
	s.enqueue(ctx, order, EventAbandonedCartRemind)
}

func (s *Service) enqueue(ctx context.Context, order *domain.Order, eventType string) {
	log := logger.FromContext(ctx)

	if !s.config.Enabled {
		log.Debug().Str("order_id", order.ID).Msg("Уведомления отключены конфигурацией, пропуск")
		return
	}

	payload, err := json.Marshal(envelope{
		EventType:  eventType,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Total:      int64(order.TotalAmount),
		QueuedAt:   time.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("Ошибка сериализации уведомления")
		return
	}

	record := &outbox.Outbox{
		ID:            uuid.NewString(),
		AggregateType: "notification",
		AggregateID:   order.ID,
		EventType:     eventType,
		Topic:         s.topic,
		MessageKey:    order.ID,
		Payload:       payload,
		Headers: map[string]string{
			"trace_id": logger.TraceIDFromContext(ctx),
		},
	}

	if err := s.outbox.Create(ctx, record); err != nil {
		log.Error().Err(apperr.Wrap(apperr.KindFatalInternal, "постановка уведомления в очередь", err)).
			Str("order_id", order.ID).
			Str("event_type", eventType).
			Msg("Не удалось поставить уведомление в очередь — best-effort, сага продолжается")
	}
}
