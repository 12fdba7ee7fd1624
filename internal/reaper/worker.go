// Package reaper sweeps orders abandoned mid-checkout: stuck reservations
// past the configured timeout are released and cancelled, and orders
// approaching that timeout get a one-time reminder email. There is no
// independent retry path once a cart goes cold — the customer never
// completed payment, so there is nothing left to retry but abandonment.
package reaper

import (
	"context"
	"time"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/notification"
	"example.com/orderfulfillment/internal/store"
	"example.com/orderfulfillment/pkg/logger"
)

// Config mirrors config.AbandonedCartConfig.
type Config struct {
	PollInterval    time.Duration
	Timeout         time.Duration
	ReminderEnabled bool
	ReminderAge     time.Duration
	BatchSize       int
}

// Worker runs the abandoned-cart sweep on a ticker.
type Worker struct {
	orders store.OrderRepository
	engine *inventoryengine.Engine
	notify *notification.Service
	cfg    Config
}

// New constructs the reaper worker.
func New(orders store.OrderRepository, engine *inventoryengine.Engine, notify *notification.Service, cfg Config) *Worker {
	return &Worker{orders: orders, engine: engine, notify: notify, cfg: cfg}
}

// Run ticks until ctx is cancelled, sweeping abandoned carts and — if
// enabled — queuing reminder emails on each tick.
func (w *Worker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Dur("timeout", w.cfg.Timeout).
		Msg("Запуск ревизора брошенных корзин")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка ревизора брошенных корзин")
			return
		case <-ticker.C:
			w.sweepAbandoned(ctx)
			if w.cfg.ReminderEnabled {
				w.sweepReminders(ctx)
			}
		}
	}
}

// sweepAbandoned cancels every order whose payment never completed —
// PENDING (never reserved) or INVENTORY_RESERVED (reserved, then
// abandoned) — older than the configured timeout, releasing whatever
// inventory it holds first.
func (w *Worker) sweepAbandoned(ctx context.Context) {
	log := logger.FromContext(ctx)

	cutoff := time.Now().Add(-w.cfg.Timeout)
	orders, err := w.orders.ListStuckReservations(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка поиска зависших резерваций")
		return
	}

	for _, order := range orders {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for _, item := range order.Items {
			if item.WarehouseID == "" {
				continue
			}
			if err := w.engine.Release(ctx, item.ProductID, item.WarehouseID, int64(item.Quantity)); err != nil {
				log.Error().
					Err(err).
					Str("order_id", order.ID).
					Str("product_id", item.ProductID).
					Msg("Освобождение остатка брошенной корзины не удалось — продолжаем")
				continue
			}
		}

		err := w.orders.UpdateStatus(ctx, order.ID, order.Status, domain.OrderStatusCancelled, func(o *domain.Order) {
			o.Metadata.CancelReason = "ABANDONED_CART"
		})
		if err != nil && !apperr.Is(err, apperr.KindConcurrencyConflict) {
			log.Error().Err(err).Str("order_id", order.ID).Msg("Отмена брошенной корзины не удалась")
			continue
		}

		log.Info().Str("order_id", order.ID).Msg("Брошенная корзина отменена, остаток освобождён")
	}
}

// sweepReminders queues a one-time reminder email for orders approaching
// the abandonment timeout, marking each as reminded so it is never sent
// twice.
func (w *Worker) sweepReminders(ctx context.Context) {
	log := logger.FromContext(ctx)

	cutoff := time.Now().Add(-w.cfg.ReminderAge)
	orders, err := w.orders.ListPendingReminders(ctx, cutoff, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка поиска заказов для напоминания")
		return
	}

	for _, order := range orders {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.notify.NotifyAbandonedCartReminder(ctx, order)
		if err := w.orders.MarkReminderSent(ctx, order.ID); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("Не удалось пометить напоминание отправленным")
		}
	}
}
