package saga

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"

	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/idempotency"
	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/notification"
	"example.com/orderfulfillment/internal/payment"
	"example.com/orderfulfillment/pkg/outbox"
)

// mockOrderRepository — мок store.OrderRepository.
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

// mockInventoryRepository — мок store.InventoryRepository, оборачиваемый
// настоящим inventoryengine.Engine так же, как в production-коде.
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

// mockOutboxRepository — мок outbox.OutboxRepository, стоящий за настоящим
// notification.Service (сага никогда не видит поддельный Sender напрямую).
type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Create(ctx context.Context, record *outbox.Outbox) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *mockOutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*outbox.Outbox, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Outbox), args.Error(1)
}

func (m *mockOutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepository) MarkFailed(ctx context.Context, id string, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func (m *mockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// newTestIdempotencyService строит настоящий idempotency.Service поверх
// miniredis — ExecuteOnce использует SetNX/Get/Set, которые проще держать
// реальными, чем имитировать условную запись через мок.
func newTestIdempotencyService(t *testing.T) *idempotency.Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("запуск miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := idempotency.NewStore(client, idempotency.DefaultTTL)
	return idempotency.NewService(store)
}

// newTestNotificationService строит notification.Service по-настоящему,
// поверх мок-outbox, так что NotifyOrderConfirmation упирается в реальную
// сериализацию конверта.
func newTestNotificationService(outboxRepo *mockOutboxRepository) *notification.Service {
	return notification.NewService(outboxRepo, "notifications", notification.Config{
		SenderAddress: "orders@example.com",
		Enabled:       true,
	})
}

// newTestEngine строит inventoryengine.Engine поверх мок-репозитория.
func newTestEngine(inv *mockInventoryRepository) *inventoryengine.Engine {
	return inventoryengine.New(inv)
}
