// Package store содержит GORM-модели и их репозитории для заказов,
// остатков и товаров. Модели отделены от domain-сущностей, чтобы доменный
// слой не зависел от тегов GORM.
package store

import (
	"time"

	"example.com/orderfulfillment/internal/domain"
)

// OrderModel — таблица orders. Статус и paymentStatus хранятся строками,
// чтобы миграции добавляющие новые значения не требовали правки схемы.
type OrderModel struct {
	ID                string         `gorm:"column:id;type:varchar(36);primaryKey"`
	CustomerID        string         `gorm:"column:customer_id;type:varchar(36);not null;index;index:idx_orders_customer_created,priority:1"`
	Status            string         `gorm:"column:status;type:varchar(24);not null;index;index:idx_orders_status_created,priority:1"`
	TotalAmount       int64          `gorm:"column:total_amount;not null"`
	ShippingStreet    string         `gorm:"column:shipping_street;type:varchar(255)"`
	ShippingCity      string         `gorm:"column:shipping_city;type:varchar(128)"`
	ShippingState     string         `gorm:"column:shipping_state;type:varchar(128)"`
	ShippingPostal    string         `gorm:"column:shipping_postal_code;type:varchar(32)"`
	ShippingCountry   string         `gorm:"column:shipping_country;type:varchar(64)"`
	PaymentIntentID   string         `gorm:"column:payment_intent_id;type:varchar(64);index"`
	PaymentStatus     string         `gorm:"column:payment_status;type:varchar(24);not null;default:pending"`
	PaymentMethod     string         `gorm:"column:payment_method;type:varchar(32)"`
	TrackingNumber    string         `gorm:"column:tracking_number;type:varchar(64)"`
	Carrier           string         `gorm:"column:carrier;type:varchar(64)"`
	EstimatedDelivery *time.Time     `gorm:"column:estimated_delivery"`
	CancelReason      string         `gorm:"column:cancel_reason;type:varchar(64)"`
	ReminderEmailSent bool           `gorm:"column:reminder_email_sent;not null;default:false"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime;index;index:idx_orders_customer_created,priority:2;index:idx_orders_status_created,priority:2"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	Items             []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (OrderModel) TableName() string { return "orders" }

// OrderItemModel — таблица order_items.
type OrderItemModel struct {
	ID            string `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID       string `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID     string `gorm:"column:product_id;type:varchar(36);not null"`
	ProductName   string `gorm:"column:product_name;type:varchar(255);not null"`
	Quantity      int32  `gorm:"column:quantity;not null"`
	PricePerUnit  int64  `gorm:"column:price_per_unit;not null"`
	TotalPrice    int64  `gorm:"column:total_price;not null"`
	WarehouseID   string `gorm:"column:warehouse_id;type:varchar(36)"`
}

// TableName возвращает имя таблицы в БД.
func (OrderItemModel) TableName() string { return "order_items" }

// InventoryModel — таблица inventory, одна строка на пару (product, warehouse).
// Version реализует optimistic concurrency control: резервирование проходит
// через `WHERE ... AND version = ?`; остальные изменения Quantity/Reserved
// версию не проверяют, но увеличивают её.
type InventoryModel struct {
	ProductID   string    `gorm:"column:product_id;type:varchar(36);primaryKey"`
	WarehouseID string    `gorm:"column:warehouse_id;type:varchar(36);primaryKey"`
	Quantity    int64     `gorm:"column:quantity;not null"`
	Reserved    int64     `gorm:"column:reserved;not null;default:0"`
	Version     int64     `gorm:"column:version;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (InventoryModel) TableName() string { return "inventory" }

// ProductModel — таблица products (каталог, read-mostly).
type ProductModel struct {
	ProductID   string `gorm:"column:product_id;type:varchar(36);primaryKey"`
	Name        string `gorm:"column:name;type:varchar(255);not null"`
	Description string `gorm:"column:description;type:text"`
	Price       int64  `gorm:"column:price;not null"`
	Category    string `gorm:"column:category;type:varchar(128)"`
	ImageURL    string `gorm:"column:image_url;type:varchar(512)"`
	Active      bool   `gorm:"column:active;not null;default:true;index"`
}

// TableName возвращает имя таблицы в БД.
func (ProductModel) TableName() string { return "products" }

func orderToDomain(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		CustomerID:      m.CustomerID,
		Status:          domain.OrderStatus(m.Status),
		TotalAmount:     domain.Money(m.TotalAmount),
		PaymentIntentID: m.PaymentIntentID,
		PaymentStatus:   domain.PaymentStatus(m.PaymentStatus),
		PaymentMethod:   m.PaymentMethod,
		TrackingNumber:  m.TrackingNumber,
		Carrier:         m.Carrier,
		ShippingAddress: domain.ShippingAddress{
			Street:     m.ShippingStreet,
			City:       m.ShippingCity,
			State:      m.ShippingState,
			PostalCode: m.ShippingPostal,
			Country:    m.ShippingCountry,
		},
		Metadata: domain.Metadata{
			CancelReason:      m.CancelReason,
			ReminderEmailSent: m.ReminderEmailSent,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Items:     make([]domain.OrderItem, len(m.Items)),
	}
	if m.EstimatedDelivery != nil {
		o.EstimatedDelivery = *m.EstimatedDelivery
	}
	for i, it := range m.Items {
		o.Items[i] = domain.OrderItem{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			Quantity:     it.Quantity,
			PricePerUnit: domain.Money(it.PricePerUnit),
			TotalPrice:   domain.Money(it.TotalPrice),
			WarehouseID:  it.WarehouseID,
		}
	}
	return o
}

func orderFromDomain(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		TotalAmount:     int64(o.TotalAmount),
		ShippingStreet:  o.ShippingAddress.Street,
		ShippingCity:    o.ShippingAddress.City,
		ShippingState:   o.ShippingAddress.State,
		ShippingPostal:  o.ShippingAddress.PostalCode,
		ShippingCountry: o.ShippingAddress.Country,
		PaymentIntentID: o.PaymentIntentID,
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   o.PaymentMethod,
		TrackingNumber:  o.TrackingNumber,
		Carrier:         o.Carrier,
		CancelReason:      o.Metadata.CancelReason,
		ReminderEmailSent: o.Metadata.ReminderEmailSent,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           make([]OrderItemModel, len(o.Items)),
	}
	if !o.EstimatedDelivery.IsZero() {
		t := o.EstimatedDelivery
		m.EstimatedDelivery = &t
	}
	for i, it := range o.Items {
		m.Items[i] = OrderItemModel{
			OrderID:      o.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			Quantity:     it.Quantity,
			PricePerUnit: int64(it.PricePerUnit),
			TotalPrice:   int64(it.TotalPrice),
			WarehouseID:  it.WarehouseID,
		}
	}
	return m
}

func inventoryToDomain(m *InventoryModel) *domain.Inventory {
	return &domain.Inventory{
		ProductID:   m.ProductID,
		WarehouseID: m.WarehouseID,
		Quantity:    m.Quantity,
		Reserved:    m.Reserved,
		Version:     m.Version,
		UpdatedAt:   m.UpdatedAt,
	}
}

func productToDomain(m *ProductModel) *domain.Product {
	return &domain.Product{
		ProductID:   m.ProductID,
		Name:        m.Name,
		Description: m.Description,
		Price:       domain.Money(m.Price),
		Category:    m.Category,
		ImageURL:    m.ImageURL,
		Active:      m.Active,
	}
}
