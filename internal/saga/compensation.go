package saga

import (
	"context"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/payment"
	"example.com/orderfulfillment/internal/store"
	"example.com/orderfulfillment/pkg/logger"
	"example.com/orderfulfillment/pkg/metrics"
)

// Operation labels reported back to the admin-cancel caller, naming exactly
// what compensation actually did.
const (
	OpPaymentRefunded  = "payment_refunded"
	OpInventoryReleased = "inventory_released"
	OpOrderCancelled   = "order_cancelled"
)

// Result reports which compensating actions actually ran.
type Result struct {
	Operations []string
}

// Compensator implements the status-driven compensation table: the action
// taken depends only on the order's status at the moment compensation
// starts, not on which step failed. There is no message-bus compensation
// reply to coordinate, so each action runs and is logged in place instead
// of being queued.
//
// A refund is only attempted from PAYMENT_CONFIRMED or SHIPPING_ALLOCATED,
// matching the status at which a payment intent is considered settled. A
// failure surfaced by VerifyPayment (e.g. an amount mismatch) cancels the
// order while it is still INVENTORY_RESERVED and therefore issues no
// refund, even though the provider may already show the intent as
// succeeded — this is a deliberate reading of the compensation table as
// status-driven rather than intent-state-driven, left as a known gap
// rather than reconciled against the intent's observed state.
type Compensator struct {
	orders  store.OrderRepository
	engine  *inventoryengine.Engine
	payment payment.Adapter
}

// NewCompensator wires the collaborators needed to unwind an order.
func NewCompensator(orders store.OrderRepository, engine *inventoryengine.Engine, adapter payment.Adapter) *Compensator {
	return &Compensator{orders: orders, engine: engine, payment: adapter}
}

// Compensate unwinds orderID according to its current status. failedStep is
// recorded for diagnostics only; cause's Kind becomes the order's cancel
// reason. A refund is attempted before inventory is released — inventory is
// always recoverable by replaying the reservation, but a lost refund
// strands a customer's money, so it is attempted first. The refund call
// itself is made once and is not retried.
func (c *Compensator) Compensate(ctx context.Context, orderID, failedStep string, cause error) (Result, error) {
	logger.FromContext(ctx).Debug().
		Str("order_id", orderID).
		Str("failed_step", failedStep).
		Msg("Начало компенсации саги")
	return c.compensateWithReason(ctx, orderID, string(apperr.KindOf(cause)))
}

// CompensateWithReason is the entry point for admin-triggered cancellation,
// where the reason is free text supplied by the operator rather than
// derived from a saga failure.
func (c *Compensator) CompensateWithReason(ctx context.Context, orderID, reason string) (Result, error) {
	return c.compensateWithReason(ctx, orderID, reason)
}

func (c *Compensator) compensateWithReason(ctx context.Context, orderID, reason string) (Result, error) {
	log := logger.FromContext(ctx)
	result := Result{}

	order, err := c.orders.GetByID(ctx, orderID)
	if err != nil {
		return result, err
	}

	switch order.Status {
	case domain.OrderStatusCancelled:
		result.Operations = append(result.Operations, OpOrderCancelled)
		return result, nil // already terminal — no-op
	case domain.OrderStatusFailed:
		return result, apperr.New(apperr.KindValidationFailure, "заказ в статусе FAILED не подлежит компенсации")
	}

	refundIssued := false
	if order.Status == domain.OrderStatusPaymentConfirmed || order.Status == domain.OrderStatusShippingAllocated {
		if order.PaymentIntentID != "" {
			if err := c.payment.Refund(ctx, order.PaymentIntentID, payment.ReasonRequestedByCustomer); err != nil {
				log.Error().
					Err(err).
					Str("order_id", orderID).
					Str("payment_intent_id", order.PaymentIntentID).
					Msg("Возврат платежа не удался — продолжаем компенсацию без него")
			} else {
				refundIssued = true
				result.Operations = append(result.Operations, OpPaymentRefunded)
			}
		}
	}

	if order.Status == domain.OrderStatusInventoryReserved ||
		order.Status == domain.OrderStatusPaymentConfirmed ||
		order.Status == domain.OrderStatusShippingAllocated {
		released := false
		for _, item := range order.Items {
			if item.WarehouseID == "" {
				continue
			}
			if err := c.engine.Release(ctx, item.ProductID, item.WarehouseID, int64(item.Quantity)); err != nil {
				log.Error().
					Err(err).
					Str("order_id", orderID).
					Str("product_id", item.ProductID).
					Str("warehouse_id", item.WarehouseID).
					Msg("Освобождение остатка при компенсации не удалось — продолжаем со следующей позицией")
				continue
			}
			released = true
		}
		if released {
			result.Operations = append(result.Operations, OpInventoryReleased)
		}
	}

	err = withConflictRetry(ctx, func() error {
		return c.orders.UpdateStatus(ctx, orderID, order.Status, domain.OrderStatusCancelled, func(o *domain.Order) {
			o.Metadata.CancelReason = reason
			if refundIssued {
				o.PaymentStatus = domain.PaymentStatusRefunded
			}
		})
	})
	if err != nil {
		metrics.SagaStepsTotal.WithLabelValues(failedStepLabel(order.Status), "compensated").Inc()
		return result, err
	}

	result.Operations = append(result.Operations, OpOrderCancelled)
	metrics.SagaStepsTotal.WithLabelValues(failedStepLabel(order.Status), "compensated").Inc()
	return result, nil
}

// failedStepLabel names the metric label for the status compensation
// started from, since the originating saga step is not always known (e.g.
// admin-triggered cancellation never ran a saga step at all).
func failedStepLabel(from domain.OrderStatus) string {
	return "compensate_from_" + string(from)
}
