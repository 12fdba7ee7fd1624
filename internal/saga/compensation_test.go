package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/payment"
)

func newTestCompensator(orders *mockOrderRepository, inv *mockInventoryRepository, pay *mockPaymentAdapter) *Compensator {
	return NewCompensator(orders, newTestEngine(inv), pay)
}

func TestCompensate_PaymentConfirmed_RefundsReleasesAndCancels(t *testing.T) {
	ctx := context.Background()
	orders := new(mockOrderRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)
	comp := newTestCompensator(orders, inv, pay)

	order := &domain.Order{
		ID:              "order-1",
		Status:          domain.OrderStatusPaymentConfirmed,
		PaymentIntentID: "intent-1",
		Items: []domain.OrderItem{
			{ProductID: "product-1", WarehouseID: "wh-1", Quantity: 2},
		},
	}
	orders.On("GetByID", ctx, "order-1").Return(order, nil)
	pay.On("Refund", ctx, "intent-1", payment.ReasonRequestedByCustomer).Return(nil)
	inv.On("Release", ctx, "product-1", "wh-1", int64(2)).Return(nil)
	orders.On("UpdateStatus", ctx, "order-1", domain.OrderStatusPaymentConfirmed, domain.OrderStatusCancelled, mock.Anything).
		Run(func(args mock.Arguments) {
			mutate := args.Get(4).(func(*domain.Order))
			mutate(order)
		}).Return(nil)

	result, err := comp.Compensate(ctx, "order-1", "verify_payment", apperr.New(apperr.KindPaymentVerificationFail, "mismatch"))

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{OpPaymentRefunded, OpInventoryReleased, OpOrderCancelled}, result.Operations)
	assert.Equal(t, domain.PaymentStatusRefunded, order.PaymentStatus)
	pay.AssertExpectations(t)
	inv.AssertExpectations(t)
}

func TestCompensate_InventoryReserved_ReleasesWithoutRefund(t *testing.T) {
	ctx := context.Background()
	orders := new(mockOrderRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)
	comp := newTestCompensator(orders, inv, pay)

	order := &domain.Order{
		ID:     "order-1",
		Status: domain.OrderStatusInventoryReserved,
		Items: []domain.OrderItem{
			{ProductID: "product-1", WarehouseID: "wh-1", Quantity: 2},
		},
	}
	orders.On("GetByID", ctx, "order-1").Return(order, nil)
	inv.On("Release", ctx, "product-1", "wh-1", int64(2)).Return(nil)
	orders.On("UpdateStatus", ctx, "order-1", domain.OrderStatusInventoryReserved, domain.OrderStatusCancelled, mock.Anything).Return(nil)

	result, err := comp.Compensate(ctx, "order-1", "verify_payment", apperr.ErrInsufficientStock)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{OpInventoryReleased, OpOrderCancelled}, result.Operations)
	pay.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompensate_Pending_OnlyCancels(t *testing.T) {
	ctx := context.Background()
	orders := new(mockOrderRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)
	comp := newTestCompensator(orders, inv, pay)

	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending}
	orders.On("GetByID", ctx, "order-1").Return(order, nil)
	orders.On("UpdateStatus", ctx, "order-1", domain.OrderStatusPending, domain.OrderStatusCancelled, mock.Anything).Return(nil)

	result, err := comp.Compensate(ctx, "order-1", "reserve_inventory", apperr.ErrInsufficientStock)

	require.NoError(t, err)
	assert.Equal(t, []string{OpOrderCancelled}, result.Operations)
	inv.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	pay.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
}

func TestCompensate_AlreadyCancelled_IsNoOp(t *testing.T) {
	ctx := context.Background()
	orders := new(mockOrderRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)
	comp := newTestCompensator(orders, inv, pay)

	order := &domain.Order{ID: "order-1", Status: domain.OrderStatusCancelled}
	orders.On("GetByID", ctx, "order-1").Return(order, nil)

	result, err := comp.Compensate(ctx, "order-1", "verify_payment", errors.New("irrelevant"))

	require.NoError(t, err)
	assert.Equal(t, []string{OpOrderCancelled}, result.Operations)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompensate_RefundFailure_StillReleasesAndCancels(t *testing.T) {
	ctx := context.Background()
	orders := new(mockOrderRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)
	comp := newTestCompensator(orders, inv, pay)

	order := &domain.Order{
		ID:              "order-1",
		Status:          domain.OrderStatusPaymentConfirmed,
		PaymentIntentID: "intent-1",
		Items: []domain.OrderItem{
			{ProductID: "product-1", WarehouseID: "wh-1", Quantity: 1},
		},
	}
	orders.On("GetByID", ctx, "order-1").Return(order, nil)
	pay.On("Refund", ctx, "intent-1", payment.ReasonRequestedByCustomer).Return(errors.New("provider down"))
	inv.On("Release", ctx, "product-1", "wh-1", int64(1)).Return(nil)
	orders.On("UpdateStatus", ctx, "order-1", domain.OrderStatusPaymentConfirmed, domain.OrderStatusCancelled, mock.Anything).Return(nil)

	result, err := comp.Compensate(ctx, "order-1", "verify_payment", errors.New("mismatch"))

	require.NoError(t, err)
	// Refund failure is logged, not fatal: inventory release and
	// cancellation still take precedence.
	assert.ElementsMatch(t, []string{OpInventoryReleased, OpOrderCancelled}, result.Operations)
}

func TestCompensateWithReason_AdminCancel_UsesOperatorReason(t *testing.T) {
	ctx := context.Background()
	orders := new(mockOrderRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)
	comp := newTestCompensator(orders, inv, pay)

	order := &domain.Order{
		ID:              "order-1",
		Status:          domain.OrderStatusShippingAllocated,
		PaymentIntentID: "intent-1",
		Items: []domain.OrderItem{
			{ProductID: "product-1", WarehouseID: "wh-1", Quantity: 1},
		},
	}
	orders.On("GetByID", ctx, "order-1").Return(order, nil)
	pay.On("Refund", ctx, "intent-1", payment.ReasonRequestedByCustomer).Return(nil)
	inv.On("Release", ctx, "product-1", "wh-1", int64(1)).Return(nil)
	orders.On("UpdateStatus", ctx, "order-1", domain.OrderStatusShippingAllocated, domain.OrderStatusCancelled, mock.Anything).
		Run(func(args mock.Arguments) {
			mutate := args.Get(4).(func(*domain.Order))
			mutate(order)
		}).Return(nil)

	result, err := comp.CompensateWithReason(ctx, "order-1", "fraud")

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{OpPaymentRefunded, OpInventoryReleased, OpOrderCancelled}, result.Operations)
	assert.Equal(t, "fraud", order.Metadata.CancelReason)
}
