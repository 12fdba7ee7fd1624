package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/payment"
	"example.com/orderfulfillment/internal/store"
)

// OrdersHandler exposes order creation and retrieval. This system's /orders
// POST has no caller identity to attach — order creation is storefront-
// facing, not gated behind AdminAuth.
type OrdersHandler struct {
	orders   store.OrderRepository
	products store.ProductRepository
	engine   *inventoryengine.Engine
	payment  payment.Adapter
}

// NewOrdersHandler wires the collaborators needed to create and read orders.
func NewOrdersHandler(orders store.OrderRepository, products store.ProductRepository, engine *inventoryengine.Engine, adapter payment.Adapter) *OrdersHandler {
	return &OrdersHandler{orders: orders, products: products, engine: engine, payment: adapter}
}

// createOrderItemRequest is one requested line item.
type createOrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int32  `json:"quantity" binding:"required,gt=0"`
}

// createOrderRequest is the POST /orders body.
type createOrderRequest struct {
	CustomerID string                   `json:"customerId" binding:"required"`
	Items      []createOrderItemRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddress struct {
		Street     string `json:"street" binding:"required"`
		City       string `json:"city" binding:"required"`
		State      string `json:"state"`
		PostalCode string `json:"postalCode" binding:"required"`
		Country    string `json:"country" binding:"required"`
	} `json:"shippingAddress" binding:"required"`
}

// createOrderResponse is the 201 body.
type createOrderResponse struct {
	OrderID      string `json:"orderId"`
	ClientSecret string `json:"clientSecret"`
	TotalAmount  int64  `json:"totalAmount"`
	Status       string `json:"status"`
}

// CreateOrder validates the requested items against the catalog and
// aggregate stock, persists a PENDING order, and mints a payment intent for
// the storefront to complete. It never reserves inventory itself — that is
// ReserveInventory's job once payment succeeds.
func (h *OrdersHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failure", Message: err.Error()})
		return
	}

	order := &domain.Order{
		ID:         uuid.NewString(),
		CustomerID: req.CustomerID,
		Status:     domain.OrderStatusPending,
		ShippingAddress: domain.ShippingAddress{
			Street:     req.ShippingAddress.Street,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentStatus: domain.PaymentStatusPending,
		Items:         make([]domain.OrderItem, 0, len(req.Items)),
	}

	for _, reqItem := range req.Items {
		product, err := h.products.GetByID(ctx, reqItem.ProductID)
		if err != nil {
			HandleError(c, err, "CreateOrder")
			return
		}
		if !product.Active {
			HandleError(c, apperr.ErrProductInactive, "CreateOrder")
			return
		}

		if err := h.checkAvailability(ctx, reqItem.ProductID, int64(reqItem.Quantity)); err != nil {
			HandleError(c, err, "CreateOrder")
			return
		}

		order.Items = append(order.Items, domain.OrderItem{
			ProductID:    product.ProductID,
			ProductName:  product.Name,
			Quantity:     reqItem.Quantity,
			PricePerUnit: product.Price,
		})
	}

	order.CalculateTotal()

	intent, err := h.payment.CreateIntent(ctx, order.ID, order.TotalAmount)
	if err != nil {
		HandleError(c, err, "CreateOrder")
		return
	}
	order.PaymentIntentID = intent.ID

	if err := h.orders.Create(ctx, order); err != nil {
		HandleError(c, err, "CreateOrder")
		return
	}

	c.JSON(http.StatusCreated, createOrderResponse{
		OrderID:      order.ID,
		ClientSecret: intent.ClientSecret,
		TotalAmount:  int64(order.TotalAmount),
		Status:       string(order.Status),
	})
}

// checkAvailability sums available stock for productID across every
// warehouse; this is a read-only pre-check, not a reservation — the real
// anti-oversell guarantee lives in inventoryengine.ReserveItem, run once
// payment succeeds.
func (h *OrdersHandler) checkAvailability(ctx context.Context, productID string, qty int64) error {
	rows, err := h.engine.InventoryByProduct(ctx, productID)
	if err != nil {
		return err
	}
	var available int64
	for _, row := range rows {
		available += row.Available()
	}
	if available < qty {
		return apperr.ErrInsufficientStock
	}
	return nil
}

// orderResponse is the GET /orders/{orderId} body.
type orderResponse struct {
	OrderID           string `json:"orderId"`
	CustomerID        string `json:"customerId"`
	Status            string `json:"status"`
	TotalAmount       int64  `json:"totalAmount"`
	PaymentStatus     string `json:"paymentStatus"`
	TrackingNumber    string `json:"trackingNumber,omitempty"`
	Carrier           string `json:"carrier,omitempty"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
	CancelReason      string `json:"cancelReason,omitempty"`
}

// GetOrder returns the current state of an order.
func (h *OrdersHandler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetByID(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		HandleError(c, err, "GetOrder")
		return
	}

	resp := orderResponse{
		OrderID:        order.ID,
		CustomerID:     order.CustomerID,
		Status:         string(order.Status),
		TotalAmount:    int64(order.TotalAmount),
		PaymentStatus:  string(order.PaymentStatus),
		TrackingNumber: order.TrackingNumber,
		Carrier:        order.Carrier,
		CancelReason:   order.Metadata.CancelReason,
	}
	if !order.EstimatedDelivery.IsZero() {
		resp.EstimatedDelivery = order.EstimatedDelivery.Format("2006-01-02")
	}
	c.JSON(http.StatusOK, resp)
}
