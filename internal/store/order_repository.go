package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
)

// OrderRepository определяет доступ к заказам и их позициям.
type OrderRepository interface {
	// Create создаёт заказ вместе с позициями в одной транзакции.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID возвращает заказ с загруженными позициями.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// ListByCustomer возвращает заказы клиента с пагинацией, отсортированные
	// по дате создания (новые первыми).
	ListByCustomer(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error)

	// UpdateStatus выполняет управляемый переход статуса, проверяя, что
	// текущий статус в БД совпадает с ожидаемым (оптимистичная проверка на
	// уровне статуса вместо отдельной колонки version — статус сам по себе
	// последовательный, конкурентные переходы из одного состояния исключены
	// саговым оркестратором, который держит заказ "своим" на время шага).
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, mutate func(*domain.Order)) error

	// ListStuckReservations возвращает заказы, которые так и не завершили
	// оплату дольше olderThan — как ещё не оплаченные (PENDING), так и
	// успевшие зарезервировать остаток до того, как корзина была брошена
	// (INVENTORY_RESERVED) — вход для ревизора брошенных корзин.
	ListStuckReservations(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)

	// ListPendingReminders возвращает заказы старше olderThan, которым ещё не
	// отправлено письмо-напоминание о брошенной корзине.
	ListPendingReminders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)

	// MarkReminderSent отмечает заказ как получивший письмо-напоминание, не
	// затрагивая его статус.
	MarkReminderSent(ctx context.Context, orderID string) error

	// UpdatePaymentInfo записывает наблюдаемые через webhook данные платежа
	// (paymentIntentId, paymentStatus, paymentMethod), не меняя статус заказа —
	// присвоение статуса происходит внутри шагов саги, а не в момент приёма
	// webhook.
	UpdatePaymentInfo(ctx context.Context, orderID, paymentIntentID, paymentStatus, paymentMethod string) error
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт GORM-репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := orderFromDomain(order)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		return err
	}

	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, apperr.Wrap(apperr.KindFatalInternal, "получение заказа", err)
	}
	return orderToDomain(&model), nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var total int64

	query := r.db.WithContext(ctx).Model(&OrderModel{}).Where("customer_id = ?", customerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.KindFatalInternal, "подсчёт заказов клиента", err)
	}

	if err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.KindFatalInternal, "список заказов клиента", err)
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = orderToDomain(&models[i])
	}
	return orders, total, nil
}

// UpdateStatus читает заказ, применяет mutate (которое обязано вызвать
// Order.TransitionTo или напрямую выставить поля), затем перезаписывает
// строку при условии, что status в БД всё ещё равен from. Нулевое число
// затронутых строк означает гонку за заказ и возвращается как
// KindConcurrencyConflict — шаг саги должен быть безопасно переигран
// (идемпотентность гарантирует отсутствие двойных побочных эффектов).
func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, mutate func(*domain.Order)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model OrderModel
		if err := tx.Preload("Items").Where("id = ? AND status = ?", orderID, string(from)).
			First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.New(apperr.KindConcurrencyConflict, "заказ уже не в ожидаемом статусе")
			}
			return apperr.Wrap(apperr.KindFatalInternal, "чтение заказа для перехода статуса", err)
		}

		order := orderToDomain(&model)
		if !order.TransitionTo(to) {
			return apperr.New(apperr.KindValidationFailure, "недопустимый переход статуса заказа")
		}
		if mutate != nil {
			mutate(order)
		}
		order.Status = to

		updated := orderFromDomain(order)
		result := tx.Model(&OrderModel{}).
			Where("id = ? AND status = ?", orderID, string(from)).
			Updates(map[string]interface{}{
				"status":              updated.Status,
				"payment_status":      updated.PaymentStatus,
				"payment_method":      updated.PaymentMethod,
				"tracking_number":     updated.TrackingNumber,
				"carrier":             updated.Carrier,
				"estimated_delivery":  updated.EstimatedDelivery,
				"cancel_reason":       updated.CancelReason,
				"reminder_email_sent": updated.ReminderEmailSent,
				"updated_at":          time.Now(),
			})
		if result.Error != nil {
			return apperr.Wrap(apperr.KindFatalInternal, "запись перехода статуса заказа", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperr.New(apperr.KindConcurrencyConflict, "конкурентное изменение статуса заказа")
		}

		for _, item := range order.Items {
			if item.WarehouseID == "" {
				continue
			}
			if err := tx.Model(&OrderItemModel{}).
				Where("order_id = ? AND product_id = ?", orderID, item.ProductID).
				Update("warehouse_id", item.WarehouseID).Error; err != nil {
				return apperr.Wrap(apperr.KindFatalInternal, "запись склада позиции заказа", err)
			}
		}
		return nil
	})
}

func (r *orderRepository) ListPendingReminders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status IN ? AND payment_status = ? AND created_at < ? AND reminder_email_sent = ?",
			[]string{string(domain.OrderStatusPending), string(domain.OrderStatusInventoryReserved)},
			string(domain.PaymentStatusPending), olderThan, false).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "поиск заказов для напоминания", err)
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = orderToDomain(&models[i])
	}
	return orders, nil
}

func (r *orderRepository) MarkReminderSent(ctx context.Context, orderID string) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ?", orderID).
		Update("reminder_email_sent", true)
	if result.Error != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "пометка отправленного напоминания", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) UpdatePaymentInfo(ctx context.Context, orderID, paymentIntentID, paymentStatus, paymentMethod string) error {
	result := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_intent_id": paymentIntentID,
			"payment_status":    paymentStatus,
			"payment_method":    paymentMethod,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "запись данных платежа", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) ListStuckReservations(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status IN ? AND payment_status = ? AND created_at < ?",
			[]string{string(domain.OrderStatusPending), string(domain.OrderStatusInventoryReserved)},
			string(domain.PaymentStatusPending), olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "поиск зависших резерваций", err)
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = orderToDomain(&models[i])
	}
	return orders, nil
}
