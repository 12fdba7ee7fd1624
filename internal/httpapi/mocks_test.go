package httpapi

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/payment"
)

// mockOrderRepository — мок store.OrderRepository для handler-тестов.
type mockOrderRepository struct {
	mock.Mock
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListByCustomer(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error) {
	args := m.Called(ctx, customerID, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, mutate func(*domain.Order)) error {
	args := m.Called(ctx, orderID, from, to, mutate)
	return args.Error(0)
}

func (m *mockOrderRepository) ListStuckReservations(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) ListPendingReminders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *mockOrderRepository) MarkReminderSent(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *mockOrderRepository) UpdatePaymentInfo(ctx context.Context, orderID, paymentIntentID, paymentStatus, paymentMethod string) error {
	args := m.Called(ctx, orderID, paymentIntentID, paymentStatus, paymentMethod)
	return args.Error(0)
}

// mockProductRepository — мок store.ProductRepository.
type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) GetByID(ctx context.Context, productID string) (*domain.Product, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) ListActive(ctx context.Context, offset, limit int) ([]*domain.Product, int64, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Product), args.Get(1).(int64), args.Error(2)
}

// mockInventoryRepository — мок store.InventoryRepository, всегда
// проходящий через настоящий inventoryengine.Engine, как и в production-коде
// (handlers never see InventoryRepository directly).
type mockInventoryRepository struct {
	mock.Mock
}

func (m *mockInventoryRepository) Get(ctx context.Context, productID, warehouseID string) (*domain.Inventory, error) {
	args := m.Called(ctx, productID, warehouseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Inventory), args.Error(1)
}

func (m *mockInventoryRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.Inventory, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Inventory), args.Error(1)
}

func (m *mockInventoryRepository) Reserve(ctx context.Context, productID, warehouseID string, qty int64, expectedVersion int64) error {
	args := m.Called(ctx, productID, warehouseID, qty, expectedVersion)
	return args.Error(0)
}

func (m *mockInventoryRepository) Release(ctx context.Context, productID, warehouseID string, qty int64) error {
	args := m.Called(ctx, productID, warehouseID, qty)
	return args.Error(0)
}

func (m *mockInventoryRepository) ConfirmShipment(ctx context.Context, productID, warehouseID string, qty int64) error {
	args := m.Called(ctx, productID, warehouseID, qty)
	return args.Error(0)
}

func (m *mockInventoryRepository) Restock(ctx context.Context, productID, warehouseID string, qty int64) error {
	args := m.Called(ctx, productID, warehouseID, qty)
	return args.Error(0)
}

// mockPaymentAdapter — мок payment.Adapter.
type mockPaymentAdapter struct {
	mock.Mock
}

func (m *mockPaymentAdapter) CreateIntent(ctx context.Context, orderID string, amount domain.Money) (*payment.Intent, error) {
	args := m.Called(ctx, orderID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *mockPaymentAdapter) GetIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *mockPaymentAdapter) Refund(ctx context.Context, intentID string, reason payment.RefundReason) error {
	args := m.Called(ctx, intentID, reason)
	return args.Error(0)
}
