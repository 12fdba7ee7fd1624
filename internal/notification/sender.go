package notification

import (
	"context"
	"encoding/json"

	"example.com/orderfulfillment/pkg/kafka"
	"example.com/orderfulfillment/pkg/logger"
)

// Sender delivers a decoded notification envelope through whatever
// transport the deployment wires up (SMTP, a transactional-email API,
// etc.). The only implementation carried by this repository logs the
// delivery, since no real mail transport is part of this system's scope —
// it exists to give the consumer loop below somewhere real to dispatch to.
type Sender interface {
	Send(ctx context.Context, eventType, orderID, customerID string, totalAmount int64) error
}

// LoggingSender is the Sender used until a real transport is configured.
type LoggingSender struct {
	FromAddress string
}

// NewLoggingSender создаёт Sender, логирующий вместо реальной отправки.
func NewLoggingSender(fromAddress string) *LoggingSender {
	return &LoggingSender{FromAddress: fromAddress}
}

// Send implements Sender.
func (s *LoggingSender) Send(ctx context.Context, eventType, orderID, customerID string, totalAmount int64) error {
	logger.FromContext(ctx).Info().
		Str("from", s.FromAddress).
		Str("event_type", eventType).
		Str("order_id", orderID).
		Str("customer_id", customerID).
		Int64("total_amount", totalAmount).
		Msg("Отправка уведомления клиенту")
	return nil
}

// ConsumerHandler adapts a Sender into a pkg/kafka.MessageHandler, decoding
// the outbox-produced envelope and dispatching it. Wired into
// pkg/kafka.Consumer by cmd/orderfulfillment/main.go.
func ConsumerHandler(sender Sender) kafka.MessageHandler {
	return func(ctx context.Context, msg *kafka.Message) error {
		var env envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			// Malformed payloads cannot be retried into success; log and
			// drop rather than blocking the partition forever.
			logger.FromContext(ctx).Error().Err(err).Msg("Не удалось разобрать сообщение уведомления")
			return nil
		}
		return sender.Send(ctx, env.EventType, env.OrderID, env.CustomerID, env.Total)
	}
}
