// Package saga drives an order through its four-step happy path —
// ReserveInventory, VerifyPayment, AllocateShipping, SendNotification — and
// falls back to the status-driven compensation table on any logical
// failure. There is no separate saga-state table: Order.Status is the
// saga's own state machine, advanced by direct synchronous calls rather
// than a command/reply choreography, since this system has no independent
// order/payment/inventory services to choreograph between.
package saga

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/idempotency"
	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/notification"
	"example.com/orderfulfillment/internal/payment"
	"example.com/orderfulfillment/internal/store"
	"example.com/orderfulfillment/pkg/logger"
	"example.com/orderfulfillment/pkg/metrics"
)

// carriers is the fixed roster AllocateShipping draws from; codes match the
// "^(US|FE|UP)\d+$" shape of the tracking numbers this step mints.
var carriers = []struct {
	name string
	code string
}{
	{"USPS", "US"},
	{"FedEx", "FE"},
	{"UPS", "UP"},
}

// Steps bundles the collaborators every individual saga step needs. It has
// no internal state of its own — each method re-reads the order fresh so
// that replayed and concurrently-triggered invocations observe the latest
// committed status.
type Steps struct {
	orders  store.OrderRepository
	engine  *inventoryengine.Engine
	idem    *idempotency.Service
	payment payment.Adapter
	notify  *notification.Service
}

// NewSteps constructs the step implementations used by Orchestrator.
func NewSteps(orders store.OrderRepository, engine *inventoryengine.Engine, idem *idempotency.Service, adapter payment.Adapter, notify *notification.Service) *Steps {
	return &Steps{orders: orders, engine: engine, idem: idem, payment: adapter, notify: notify}
}

// reservedLine is the JSON shape cached under each item's idempotency key
// and under the step-level key, letting a cache hit reconstruct the
// warehouse assignment without re-running the reservation.
type reservedLine struct {
	ProductID   string `json:"productId"`
	WarehouseID string `json:"warehouseId"`
}

// ReserveInventory reserves a warehouse for every line item, guarded both by
// a step-level key (order:{orderId}:reserve-inventory) and a per-item key
// (inventory:{orderId}:{productId}:reserve) so a retried call never
// double-reserves a line that already succeeded within a partially-applied
// attempt.
func (s *Steps) ReserveInventory(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusInventoryReserved, domain.OrderStatusPaymentConfirmed, domain.OrderStatusShippingAllocated:
		return order, nil // already past this step — idempotent replay
	case domain.OrderStatusPending:
		// proceed
	default:
		return nil, apperr.New(apperr.KindValidationFailure, "заказ не в статусе, допускающем резервирование остатка")
	}

	stepKey := fmt.Sprintf("order:%s:reserve-inventory", orderID)
	raw, err := s.idem.ExecuteOnce(ctx, stepKey, "reserve-inventory", func(ctx context.Context) (any, error) {
		lines := make([]reservedLine, 0, len(order.Items))
		for i := range order.Items {
			item := &order.Items[i]
			itemKey := fmt.Sprintf("inventory:%s:%s:reserve", orderID, item.ProductID)
			itemRaw, err := s.idem.ExecuteOnce(ctx, itemKey, "inventory-reserve", func(ctx context.Context) (any, error) {
				reserved, err := s.engine.ReserveItem(ctx, item.ProductID, int64(item.Quantity))
				if err != nil {
					return nil, err
				}
				return reservedLine{ProductID: reserved.ProductID, WarehouseID: reserved.WarehouseID}, nil
			})
			if err != nil {
				return nil, err
			}
			var line reservedLine
			if err := unmarshalInto(itemRaw, &line); err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
		return lines, nil
	})
	if err != nil {
		metrics.SagaStepsTotal.WithLabelValues("reserve_inventory", "failed").Inc()
		return nil, err
	}

	var lines []reservedLine
	if err := unmarshalInto(raw, &lines); err != nil {
		return nil, err
	}
	byProduct := make(map[string]string, len(lines))
	for _, l := range lines {
		byProduct[l.ProductID] = l.WarehouseID
	}

	err = withConflictRetry(ctx, func() error {
		return s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusInventoryReserved, func(o *domain.Order) {
			for i := range o.Items {
				if wh, ok := byProduct[o.Items[i].ProductID]; ok {
					o.Items[i].WarehouseID = wh
				}
			}
		})
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConcurrencyConflict) {
			// Someone else already carried the order past PENDING; treat as
			// an idempotent replay rather than a failure.
			if fresh, getErr := s.orders.GetByID(ctx, orderID); getErr == nil && fresh.Status != domain.OrderStatusPending {
				metrics.SagaStepsTotal.WithLabelValues("reserve_inventory", "success").Inc()
				return fresh, nil
			}
		}
		metrics.SagaStepsTotal.WithLabelValues("reserve_inventory", "failed").Inc()
		return nil, err
	}

	metrics.SagaStepsTotal.WithLabelValues("reserve_inventory", "success").Inc()
	return s.orders.GetByID(ctx, orderID)
}

// VerifyPayment confirms with the payment provider that the intent attached
// to the order at webhook-ingest time actually succeeded for the expected
// amount, under key order:{orderId}:payment-verification.
func (s *Steps) VerifyPayment(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusPaymentConfirmed, domain.OrderStatusShippingAllocated:
		return order, nil
	case domain.OrderStatusInventoryReserved:
		// proceed
	default:
		return nil, apperr.New(apperr.KindValidationFailure, "заказ не в статусе, допускающем проверку оплаты")
	}

	if order.PaymentIntentID == "" {
		return nil, apperr.New(apperr.KindValidationFailure, "у заказа нет платёжного намерения")
	}

	stepKey := fmt.Sprintf("order:%s:payment-verification", orderID)
	_, err = s.idem.ExecuteOnce(ctx, stepKey, "verify-payment", func(ctx context.Context) (any, error) {
		intent, err := s.payment.GetIntent(ctx, order.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		if intent.Status != "succeeded" {
			return nil, apperr.New(apperr.KindPaymentVerificationFail, "платёж не подтверждён провайдером")
		}
		if intent.Amount != order.TotalAmount {
			return nil, apperr.New(apperr.KindPaymentVerificationFail, "сумма платежа не совпадает с суммой заказа")
		}
		return intent, nil
	})
	if err != nil {
		metrics.SagaStepsTotal.WithLabelValues("verify_payment", "failed").Inc()
		return nil, err
	}

	err = withConflictRetry(ctx, func() error {
		return s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusInventoryReserved, domain.OrderStatusPaymentConfirmed, nil)
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConcurrencyConflict) {
			if fresh, getErr := s.orders.GetByID(ctx, orderID); getErr == nil && fresh.Status != domain.OrderStatusInventoryReserved {
				metrics.SagaStepsTotal.WithLabelValues("verify_payment", "success").Inc()
				return fresh, nil
			}
		}
		metrics.SagaStepsTotal.WithLabelValues("verify_payment", "failed").Inc()
		return nil, err
	}

	metrics.SagaStepsTotal.WithLabelValues("verify_payment", "success").Inc()
	return s.orders.GetByID(ctx, orderID)
}

// shippingAllocation is cached so a replayed call returns the same tracking
// number rather than minting a second one.
type shippingAllocation struct {
	TrackingNumber    string    `json:"trackingNumber"`
	Carrier           string    `json:"carrier"`
	EstimatedDelivery time.Time `json:"estimatedDelivery"`
}

// AllocateShipping mints a tracking number with a carrier once payment is
// confirmed, under key order:{orderId}:allocate-shipping.
func (s *Steps) AllocateShipping(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusShippingAllocated:
		return order, nil
	case domain.OrderStatusPaymentConfirmed:
		// proceed
	default:
		return nil, apperr.New(apperr.KindValidationFailure, "заказ не в статусе, допускающем аллокацию доставки")
	}

	stepKey := fmt.Sprintf("order:%s:allocate-shipping", orderID)
	raw, err := s.idem.ExecuteOnce(ctx, stepKey, "allocate-shipping", func(ctx context.Context) (any, error) {
		carrier := carriers[rand.Intn(len(carriers))]
		return shippingAllocation{
			TrackingNumber:    fmt.Sprintf("%s%d%03d", carrier.code, time.Now().UnixMilli(), rand.Intn(1000)),
			Carrier:           carrier.name,
			EstimatedDelivery: time.Now().Add(time.Duration(3+rand.Intn(3)) * 24 * time.Hour),
		}, nil
	})
	if err != nil {
		metrics.SagaStepsTotal.WithLabelValues("allocate_shipping", "failed").Inc()
		return nil, err
	}

	var alloc shippingAllocation
	if err := unmarshalInto(raw, &alloc); err != nil {
		return nil, err
	}

	err = withConflictRetry(ctx, func() error {
		return s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusPaymentConfirmed, domain.OrderStatusShippingAllocated, func(o *domain.Order) {
			o.TrackingNumber = alloc.TrackingNumber
			o.Carrier = alloc.Carrier
			o.EstimatedDelivery = alloc.EstimatedDelivery
		})
	})
	if err != nil {
		if apperr.Is(err, apperr.KindConcurrencyConflict) {
			if fresh, getErr := s.orders.GetByID(ctx, orderID); getErr == nil && fresh.Status != domain.OrderStatusPaymentConfirmed {
				metrics.SagaStepsTotal.WithLabelValues("allocate_shipping", "success").Inc()
				return fresh, nil
			}
		}
		metrics.SagaStepsTotal.WithLabelValues("allocate_shipping", "failed").Inc()
		return nil, err
	}

	metrics.SagaStepsTotal.WithLabelValues("allocate_shipping", "success").Inc()
	return s.orders.GetByID(ctx, orderID)
}

// SendNotification enqueues the order-confirmation email. It is best-effort
// by construction (notification.Service never returns an error) and never
// fails the saga.
func (s *Steps) SendNotification(ctx context.Context, order *domain.Order) {
	log := logger.FromContext(ctx)
	s.notify.NotifyOrderConfirmation(ctx, order)
	log.Debug().Str("order_id", order.ID).Msg("Уведомление о подтверждении заказа поставлено в очередь")
	metrics.SagaStepsTotal.WithLabelValues("send_notification", "success").Inc()
}
