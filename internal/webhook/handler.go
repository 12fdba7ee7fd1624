// Package webhook ingests payment_intent.* deliveries from the payment
// provider: verifies the HMAC signature, persists the observed payment
// state onto the order, and kicks off the saga for payment_intent.succeeded
// events.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/payment"
	"example.com/orderfulfillment/internal/saga"
	"example.com/orderfulfillment/internal/store"
	"example.com/orderfulfillment/pkg/logger"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 signature of the raw
// request body.
const SignatureHeader = "X-Payment-Signature"

// Handler is the gin-facing webhook ingress.
type Handler struct {
	orders        store.OrderRepository
	secrets       *payment.SecretProvider
	orchestrator  *saga.Orchestrator
	allowUnverified bool
}

// NewHandler wires the webhook ingress. allowUnverified mirrors
// config.PaymentConfig.AllowUnverifiedWebhooks — it only ever applies when
// no signing secret is configured (local/dev), never as a bypass of a
// present-but-mismatched signature.
func NewHandler(orders store.OrderRepository, secrets *payment.SecretProvider, orchestrator *saga.Orchestrator, allowUnverified bool) *Handler {
	return &Handler{orders: orders, secrets: secrets, orchestrator: orchestrator, allowUnverified: allowUnverified}
}

// Handle processes one webhook delivery.
func (h *Handler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": "не удалось прочитать тело запроса"})
		return
	}

	if err := h.verify(body, c.GetHeader(SignatureHeader)); err != nil {
		log.Warn().Err(err).Msg("Webhook отклонён: подпись не прошла проверку")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature", "message": "подпись webhook не прошла проверку"})
		return
	}

	var event payment.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": "не удалось разобрать тело webhook"})
		return
	}

	switch event.Type {
	case payment.EventPaymentSucceeded:
		h.handleSucceeded(ctx, &event)
	case payment.EventPaymentFailed:
		h.handleTerminal(ctx, &event, domain.PaymentStatusFailed)
	case payment.EventPaymentCanceled:
		h.handleTerminal(ctx, &event, domain.PaymentStatusCanceled)
	default:
		log.Debug().Str("event_type", event.Type).Msg("Неизвестный тип webhook-события, игнорируется")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) verify(body []byte, signature string) error {
	secret, err := h.secrets.Secret()
	if err != nil {
		return err
	}
	if len(secret) == 0 {
		if h.allowUnverified {
			return nil
		}
		return apperr.New(apperr.KindSignatureFailure, "секрет подписи webhook не настроен")
	}
	if signature == "" {
		return apperr.New(apperr.KindSignatureFailure, "заголовок подписи webhook отсутствует")
	}
	return payment.VerifySignature(secret, body, signature)
}

// handleSucceeded persists the observed payment intent onto the order and
// triggers the saga in the background — the HTTP response acknowledges
// receipt immediately, per the provider's webhook delivery contract, and
// does not block on the saga's completion.
func (h *Handler) handleSucceeded(ctx context.Context, event *payment.WebhookEvent) {
	log := logger.FromContext(ctx)
	orderID := event.Intent.Metadata.OrderID
	if orderID == "" {
		log.Warn().Str("payment_intent_id", event.Intent.ID).Msg("Webhook succeeded без orderId в metadata")
		return
	}

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Не удалось найти заказ для webhook succeeded")
		return
	}
	if order.Status != domain.OrderStatusPending {
		log.Debug().Str("order_id", orderID).Str("status", string(order.Status)).
			Msg("Дублирующий webhook succeeded, заказ уже продвинулся — игнорируется")
		return
	}

	if err := h.orders.UpdatePaymentInfo(ctx, orderID, event.Intent.ID, string(domain.PaymentStatusSucceeded), event.Intent.PaymentMethod); err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Не удалось записать данные платежа")
		return
	}

	sagaCtx := logger.NewContextWithIDs(context.Background(), logger.TraceIDFromContext(ctx), logger.CorrelationIDFromContext(ctx))
	go func() {
		if err := h.orchestrator.Run(sagaCtx, orderID); err != nil {
			logger.FromContext(sagaCtx).Warn().Err(err).Str("order_id", orderID).Msg("Сага завершилась компенсацией")
		}
	}()
}

// handleTerminal handles payment_failed/canceled: the order is cancelled
// directly, without ever entering the saga.
func (h *Handler) handleTerminal(ctx context.Context, event *payment.WebhookEvent, status domain.PaymentStatus) {
	log := logger.FromContext(ctx)
	orderID := event.Intent.Metadata.OrderID
	if orderID == "" {
		return
	}

	order, err := h.orders.GetByID(ctx, orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Не удалось найти заказ для терминального webhook")
		return
	}
	if order.Status.IsTerminal() {
		return // already CANCELLED/FAILED — idempotent no-op
	}

	err = h.orders.UpdateStatus(ctx, orderID, order.Status, domain.OrderStatusCancelled, func(o *domain.Order) {
		o.PaymentStatus = status
		o.Metadata.CancelReason = "payment_" + string(status)
	})
	if err != nil && !apperr.Is(err, apperr.KindConcurrencyConflict) {
		log.Error().Err(err).Str("order_id", orderID).Msg("Не удалось отменить заказ по терминальному webhook")
	}
}
