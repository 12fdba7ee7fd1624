// Package domain содержит бизнес-сущности движка выполнения заказов:
// Order, Inventory, Product и их доменные инварианты. Сущности не зависят
// от инфраструктуры (GORM, HTTP, Redis).
package domain

import "time"

// OrderStatus — статус заказа в системе.
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "PENDING"
	OrderStatusInventoryReserved  OrderStatus = "INVENTORY_RESERVED"
	OrderStatusPaymentConfirmed   OrderStatus = "PAYMENT_CONFIRMED"
	OrderStatusShippingAllocated  OrderStatus = "SHIPPING_ALLOCATED"
	OrderStatusCancelled          OrderStatus = "CANCELLED"
	// OrderStatusFailed зарезервирован для фатальных внутренних ошибок
	// субстрата саги; обычный бизнес-провал (недостаток стока, ошибка
	// платежа, отмена админом) всегда ведёт к CANCELLED, никогда к FAILED.
	OrderStatusFailed OrderStatus = "FAILED"
)

// PaymentStatus — статус платежа, наблюдаемый через webhook ingress.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCanceled  PaymentStatus = "canceled"
)

// allowedTransitions описывает единственный граф переходов статуса заказа.
// Саговый оркестратор, обработчик компенсации и ревизор-реапер — единственные
// компоненты, которые его используют; любая попытка перехода вне этой карты
// отклоняется TransitionTo.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:           {OrderStatusInventoryReserved, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusInventoryReserved: {OrderStatusPaymentConfirmed, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaymentConfirmed:  {OrderStatusShippingAllocated, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusShippingAllocated: {OrderStatusCancelled},
	OrderStatusCancelled:         {},
	OrderStatusFailed:            {},
}

// CanTransitionTo проверяет, допустим ли переход from -> to.
func CanTransitionTo(from, to OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для статусов, из которых нет исходящих переходов.
func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// ShippingAddress — адрес доставки заказа.
type ShippingAddress struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Metadata — непрозрачный пакет известных расширений заказа. Моделируется
// как набор известных типизированных полей вместо произвольного JSON-блоба.
type Metadata struct {
	CancelReason      string
	ReminderEmailSent bool
}

// OrderItem — позиция заказа.
type OrderItem struct {
	ProductID    string
	ProductName  string
	Quantity     int32
	PricePerUnit Money
	TotalPrice   Money
	// WarehouseID заполняется шагом ReserveInventory; до резервирования пуст.
	WarehouseID string
}

// Total возвращает количество * цену за единицу.
func (oi OrderItem) Total() Money {
	return oi.PricePerUnit.Multiply(oi.Quantity)
}

// Order — заказ в системе. Статус сам по себе является состоянием саги:
// отдельной таблицы Saga не существует.
type Order struct {
	ID              string
	CustomerID      string
	Items           []OrderItem
	TotalAmount     Money
	Status          OrderStatus
	ShippingAddress ShippingAddress
	PaymentIntentID string
	PaymentStatus   PaymentStatus
	PaymentMethod   string
	TrackingNumber  string
	Carrier         string
	EstimatedDelivery time.Time
	Metadata        Metadata
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CalculateTotal пересчитывает totalAmount = Σ item.TotalPrice и выставляет
// TotalPrice = Quantity * PricePerUnit на каждой позиции.
func (o *Order) CalculateTotal() {
	var total Money
	for i := range o.Items {
		o.Items[i].TotalPrice = o.Items[i].Total()
		total += o.Items[i].TotalPrice
	}
	o.TotalAmount = total
}

// TransitionTo переводит заказ в новый статус, если переход допустим.
// CANCELLED терминален: дальнейшие переходы не допускаются, в том числе
// повторный переход в CANCELLED (обработчик компенсации сам обрабатывает
// идемпотентность на уровне "CANCELLED -> no-op" до вызова TransitionTo).
func (o *Order) TransitionTo(next OrderStatus) bool {
	if !CanTransitionTo(o.Status, next) {
		return false
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	return true
}

// AllWarehoused возвращает true, если каждая позиция получила WarehouseID.
// Используется для проверки инварианта "warehouseId on every item after the
// reservation step completes".
func (o *Order) AllWarehoused() bool {
	for _, item := range o.Items {
		if item.WarehouseID == "" {
			return false
		}
	}
	return true
}
