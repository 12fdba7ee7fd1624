package reaper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/notification"
	"example.com/orderfulfillment/pkg/outbox"
)

// fakeOrderRepository is a minimal in-memory store.OrderRepository for
// exercising the reaper's sweep logic without a database.
type fakeOrderRepository struct {
	mu             sync.Mutex
	stuck          []*domain.Order
	reminders      []*domain.Order
	remindedIDs    map[string]bool
	cancelledIDs   map[string]string // orderID -> cancelReason
	updateStatusErr error
}

func newFakeOrderRepository() *fakeOrderRepository {
	return &fakeOrderRepository{remindedIDs: map[string]bool{}, cancelledIDs: map[string]string{}}
}

func (f *fakeOrderRepository) Create(context.Context, *domain.Order) error { return nil }
func (f *fakeOrderRepository) GetByID(context.Context, string) (*domain.Order, error) {
	return nil, apperr.ErrOrderNotFound
}
func (f *fakeOrderRepository) ListByCustomer(context.Context, string, int, int) ([]*domain.Order, int64, error) {
	return nil, 0, nil
}

func (f *fakeOrderRepository) UpdateStatus(_ context.Context, orderID string, from, to domain.OrderStatus, mutate func(*domain.Order)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	o := &domain.Order{Status: from}
	if mutate != nil {
		mutate(o)
	}
	f.cancelledIDs[orderID] = o.Metadata.CancelReason
	return nil
}

func (f *fakeOrderRepository) ListStuckReservations(context.Context, time.Time, int) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stuck, nil
}

func (f *fakeOrderRepository) ListPendingReminders(context.Context, time.Time, int) ([]*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reminders, nil
}

func (f *fakeOrderRepository) MarkReminderSent(_ context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remindedIDs[orderID] = true
	return nil
}

func (f *fakeOrderRepository) UpdatePaymentInfo(context.Context, string, string, string, string) error {
	return nil
}

// fakeInventoryRepo is a minimal store.InventoryRepository tracking released quantities.
type fakeInventoryRepo struct {
	mu       sync.Mutex
	rows     map[string]*domain.Inventory
	released map[string]int64
}

func newFakeInventoryRepo(rows ...*domain.Inventory) *fakeInventoryRepo {
	f := &fakeInventoryRepo{rows: map[string]*domain.Inventory{}, released: map[string]int64{}}
	for _, r := range rows {
		cp := *r
		f.rows[r.ProductID+"|"+r.WarehouseID] = &cp
	}
	return f
}

func (f *fakeInventoryRepo) Get(_ context.Context, productID, warehouseID string) (*domain.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[productID+"|"+warehouseID]
	if !ok {
		return nil, apperr.ErrInventoryNotFound
	}
	cp := *row
	return &cp, nil
}
func (f *fakeInventoryRepo) ListByProduct(context.Context, string) ([]*domain.Inventory, error) { return nil, nil }

func (f *fakeInventoryRepo) Reserve(context.Context, string, string, int64, int64) error { return nil }

func (f *fakeInventoryRepo) Release(_ context.Context, productID, warehouseID string, qty int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[productID+"|"+warehouseID]
	if !ok {
		return apperr.ErrInventoryNotFound
	}
	row.Reserved -= qty
	row.Version++
	f.released[productID+"|"+warehouseID] += qty
	return nil
}

func (f *fakeInventoryRepo) ConfirmShipment(context.Context, string, string, int64) error { return nil }
func (f *fakeInventoryRepo) Restock(context.Context, string, string, int64) error         { return nil }

func newTestNotificationService() *notification.Service {
	return notification.NewService(&noopOutbox{}, "notifications", notification.Config{SenderAddress: "orders@example.com", Enabled: true})
}

type noopOutbox struct{}

func (noopOutbox) Create(context.Context, *outbox.Outbox) error          { return nil }
func (noopOutbox) GetUnprocessed(context.Context, int) ([]*outbox.Outbox, error) { return nil, nil }
func (noopOutbox) MarkProcessed(context.Context, string) error          { return nil }
func (noopOutbox) MarkFailed(context.Context, string, error) error      { return nil }
func (noopOutbox) DeleteProcessedBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func TestWorker_SweepAbandoned_ReleasesInventoryAndCancels(t *testing.T) {
	invRepo := newFakeInventoryRepo(&domain.Inventory{ProductID: "P1", WarehouseID: "W1", Quantity: 10, Reserved: 2, Version: 3})
	engine := inventoryengine.New(invRepo)
	orders := newFakeOrderRepository()
	orders.stuck = []*domain.Order{
		{
			ID:     "O1",
			Status: domain.OrderStatusInventoryReserved,
			Items:  []domain.OrderItem{{ProductID: "P1", WarehouseID: "W1", Quantity: 2}},
		},
	}

	w := New(orders, engine, newTestNotificationService(), Config{Timeout: 30 * time.Minute, BatchSize: 10})
	w.sweepAbandoned(context.Background())

	assert.Equal(t, int64(2), invRepo.released["P1|W1"])
	assert.Equal(t, "ABANDONED_CART", orders.cancelledIDs["O1"])
}

func TestWorker_SweepAbandoned_ContinuesOnReleaseFailure(t *testing.T) {
	invRepo := newFakeInventoryRepo() // no rows: every Release fails with NotFound
	engine := inventoryengine.New(invRepo)
	orders := newFakeOrderRepository()
	orders.stuck = []*domain.Order{
		{
			ID:     "O1",
			Status: domain.OrderStatusInventoryReserved,
			Items:  []domain.OrderItem{{ProductID: "P1", WarehouseID: "W1", Quantity: 2}},
		},
	}

	w := New(orders, engine, newTestNotificationService(), Config{Timeout: 30 * time.Minute, BatchSize: 10})
	require.NotPanics(t, func() { w.sweepAbandoned(context.Background()) })

	// The order is still cancelled even though releasing its one item failed —
	// stock leakage is logged, never allowed to block the cancel transition.
	assert.Equal(t, "ABANDONED_CART", orders.cancelledIDs["O1"])
}

func TestWorker_SweepReminders_MarksSentOnce(t *testing.T) {
	invRepo := newFakeInventoryRepo()
	engine := inventoryengine.New(invRepo)
	orders := newFakeOrderRepository()
	orders.reminders = []*domain.Order{
		{ID: "O1", CustomerID: "C1", Status: domain.OrderStatusInventoryReserved},
	}

	w := New(orders, engine, newTestNotificationService(), Config{ReminderEnabled: true, ReminderAge: 25 * time.Minute, BatchSize: 10})
	w.sweepReminders(context.Background())

	assert.True(t, orders.remindedIDs["O1"])
}
