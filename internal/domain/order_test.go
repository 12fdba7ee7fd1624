package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrder_CalculateTotal_SumsItemTotals(t *testing.T) {
	o := &Order{
		Items: []OrderItem{
			{ProductID: "P1", Quantity: 2, PricePerUnit: 1999},
			{ProductID: "P2", Quantity: 1, PricePerUnit: 500},
		},
	}

	o.CalculateTotal()

	assert.Equal(t, Money(3998), o.Items[0].TotalPrice)
	assert.Equal(t, Money(500), o.Items[1].TotalPrice)
	assert.Equal(t, Money(4498), o.TotalAmount)
}

func TestCanTransitionTo_FollowsStateMachine(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusInventoryReserved, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusInventoryReserved, OrderStatusPaymentConfirmed, true},
		{OrderStatusPaymentConfirmed, OrderStatusShippingAllocated, true},
		{OrderStatusShippingAllocated, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPaymentConfirmed, false},
		{OrderStatusShippingAllocated, OrderStatusInventoryReserved, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusInventoryReserved, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransitionTo(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestOrder_TransitionTo_RejectsInvalidAndTerminalRegressions(t *testing.T) {
	o := &Order{Status: OrderStatusCancelled}
	assert.False(t, o.TransitionTo(OrderStatusPending))
	assert.Equal(t, OrderStatusCancelled, o.Status)

	o2 := &Order{Status: OrderStatusPending}
	assert.True(t, o2.TransitionTo(OrderStatusInventoryReserved))
	assert.Equal(t, OrderStatusInventoryReserved, o2.Status)
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusFailed.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusInventoryReserved.IsTerminal())
}

func TestOrder_AllWarehoused(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{ProductID: "P1", WarehouseID: "W1"},
		{ProductID: "P2"},
	}}
	assert.False(t, o.AllWarehoused())

	o.Items[1].WarehouseID = "W2"
	assert.True(t, o.AllWarehoused())
}
