package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/payment"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newOrdersHandler(orders *mockOrderRepository, products *mockProductRepository, inv *mockInventoryRepository, pay *mockPaymentAdapter) *OrdersHandler {
	return NewOrdersHandler(orders, products, inventoryengine.New(inv), pay)
}

func createOrderBody() []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"customerId": "cust-1",
		"items": []map[string]interface{}{
			{"productId": "P1", "quantity": 2},
		},
		"shippingAddress": map[string]string{
			"street":     "1 Main St",
			"city":       "Springfield",
			"postalCode": "00000",
			"country":    "US",
		},
	})
	return body
}

// TestCreateOrder_HappyPath проверяет, что валидный запрос с товаром в
// наличии создаёт заказ в PENDING и возвращает clientSecret от платёжного
// провайдера.
func TestCreateOrder_HappyPath(t *testing.T) {
	orders := new(mockOrderRepository)
	products := new(mockProductRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)

	products.On("GetByID", mock.Anything, "P1").Return(&domain.Product{
		ProductID: "P1", Name: "Widget", Price: 1999, Active: true,
	}, nil)
	inv.On("ListByProduct", mock.Anything, "P1").Return([]*domain.Inventory{
		{ProductID: "P1", WarehouseID: "W1", Quantity: 100, Reserved: 0, Version: 5},
	}, nil)
	pay.On("CreateIntent", mock.Anything, mock.Anything, domain.Money(3998)).Return(&payment.Intent{
		ID: "pi_123", ClientSecret: "secret_123",
	}, nil)
	orders.On("Create", mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil)

	h := newOrdersHandler(orders, products, inv, pay)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(createOrderBody()))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateOrder(c)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp createOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "secret_123", resp.ClientSecret)
	assert.EqualValues(t, 3998, resp.TotalAmount)
	assert.Equal(t, "PENDING", resp.Status)

	orders.AssertExpectations(t)
	pay.AssertExpectations(t)
}

// TestCreateOrder_InactiveProduct проверяет, что неактивный товар
// отклоняется 400-й без обращения к платёжному провайдеру.
func TestCreateOrder_InactiveProduct(t *testing.T) {
	orders := new(mockOrderRepository)
	products := new(mockProductRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)

	products.On("GetByID", mock.Anything, "P1").Return(&domain.Product{
		ProductID: "P1", Active: false,
	}, nil)

	h := newOrdersHandler(orders, products, inv, pay)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(createOrderBody()))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateOrder(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	pay.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything)
}

// TestCreateOrder_InsufficientStock проверяет, что недостаточный
// суммарный остаток на всех складах отклоняет заказ ещё до минта intent'а.
func TestCreateOrder_InsufficientStock(t *testing.T) {
	orders := new(mockOrderRepository)
	products := new(mockProductRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)

	products.On("GetByID", mock.Anything, "P1").Return(&domain.Product{
		ProductID: "P1", Price: 1999, Active: true,
	}, nil)
	inv.On("ListByProduct", mock.Anything, "P1").Return([]*domain.Inventory{
		{ProductID: "P1", WarehouseID: "W1", Quantity: 1, Reserved: 0, Version: 1},
	}, nil)

	h := newOrdersHandler(orders, products, inv, pay)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(createOrderBody()))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateOrder(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	pay.AssertNotCalled(t, "CreateIntent", mock.Anything, mock.Anything, mock.Anything)
}

// TestCreateOrder_ValidationFailure проверяет, что binding-ошибки (здесь:
// отсутствующий customerId) возвращают 400 без похода к коллабораторам.
func TestCreateOrder_ValidationFailure(t *testing.T) {
	orders := new(mockOrderRepository)
	products := new(mockProductRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)

	h := newOrdersHandler(orders, products, inv, pay)

	body, _ := json.Marshal(map[string]interface{}{"items": []map[string]interface{}{}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CreateOrder(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	products.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// TestGetOrder_Found проверяet, что существующий заказ сериализуется с
// датой доставки в формате YYYY-MM-DD.
func TestGetOrder_Found(t *testing.T) {
	orders := new(mockOrderRepository)
	products := new(mockProductRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)

	order := &domain.Order{
		ID:             "order-1",
		CustomerID:     "cust-1",
		Status:         domain.OrderStatusShippingAllocated,
		TotalAmount:    3998,
		PaymentStatus:  domain.PaymentStatusSucceeded,
		TrackingNumber: "US123456789",
		Carrier:        "USPS",
		EstimatedDelivery: time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
	}
	orders.On("GetByID", mock.Anything, "order-1").Return(order, nil)

	h := newOrdersHandler(orders, products, inv, pay)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/order-1", nil)
	c.Params = gin.Params{{Key: "orderId", Value: "order-1"}}

	h.GetOrder(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp orderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "order-1", resp.OrderID)
	assert.Equal(t, "SHIPPING_ALLOCATED", resp.Status)
	assert.Equal(t, "USPS", resp.Carrier)
	assert.Equal(t, "2026-03-14", resp.EstimatedDelivery)
}

// TestGetOrder_NotFound проверяет 404-маппинг apperr.ErrOrderNotFound.
func TestGetOrder_NotFound(t *testing.T) {
	orders := new(mockOrderRepository)
	products := new(mockProductRepository)
	inv := new(mockInventoryRepository)
	pay := new(mockPaymentAdapter)

	orders.On("GetByID", mock.Anything, "missing").Return(nil, apperr.ErrOrderNotFound)

	h := newOrdersHandler(orders, products, inv, pay)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/missing", nil)
	c.Params = gin.Params{{Key: "orderId", Value: "missing"}}

	h.GetOrder(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
