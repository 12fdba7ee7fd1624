package saga

import (
	"encoding/json"

	"context"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/pkg/logger"
)

// unmarshalInto decodes an idempotency.Service result (either freshly
// produced or replayed from cache) into dst.
func unmarshalInto(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "разбор кэшированного результата шага", err)
	}
	return nil
}

// Orchestrator walks an order through its four saga steps in order,
// short-circuiting to the Compensator on the first logical failure. It is
// triggered by the webhook handler once a payment_intent.succeeded event
// lands, and can be safely re-invoked for the same order at any point —
// every step is itself idempotent.
type Orchestrator struct {
	steps        *Steps
	compensation *Compensator
}

// NewOrchestrator wires the step implementations to the compensation
// handler.
func NewOrchestrator(steps *Steps, compensation *Compensator) *Orchestrator {
	return &Orchestrator{steps: steps, compensation: compensation}
}

// Run executes ReserveInventory -> VerifyPayment -> AllocateShipping ->
// SendNotification for orderID. A logical failure (insufficient inventory,
// payment mismatch) triggers compensation and Run returns the triggering
// error; a successful run returns nil. Concurrency conflicts are already
// absorbed inside each step and never reach here as a distinct case.
func (o *Orchestrator) Run(ctx context.Context, orderID string) error {
	log := logger.FromContext(ctx)

	order, err := o.steps.ReserveInventory(ctx, orderID)
	if err != nil {
		return o.fail(ctx, orderID, "reserve_inventory", err)
	}

	order, err = o.steps.VerifyPayment(ctx, orderID)
	if err != nil {
		return o.fail(ctx, orderID, "verify_payment", err)
	}

	order, err = o.steps.AllocateShipping(ctx, orderID)
	if err != nil {
		return o.fail(ctx, orderID, "allocate_shipping", err)
	}

	o.steps.SendNotification(ctx, order)

	log.Info().Str("order_id", orderID).Str("status", string(order.Status)).Msg("Сага заказа успешно завершена")
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, orderID, failedStep string, cause error) error {
	log := logger.FromContext(ctx)
	log.Warn().
		Err(cause).
		Str("order_id", orderID).
		Str("failed_step", failedStep).
		Msg("Шаг саги провалился, запуск компенсации")

	if _, compErr := o.compensation.Compensate(ctx, orderID, failedStep, cause); compErr != nil {
		log.Error().
			Err(compErr).
			Str("order_id", orderID).
			Msg("Компенсация не завершилась успешно")
	}
	return cause
}
