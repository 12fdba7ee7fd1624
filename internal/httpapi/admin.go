package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/orderfulfillment/internal/saga"
)

// AdminHandler exposes operator-triggered order cancellation, gated by
// AdminAuth.
type AdminHandler struct {
	compensation *saga.Compensator
}

// NewAdminHandler wires the compensation handler used by admin cancellation.
func NewAdminHandler(compensation *saga.Compensator) *AdminHandler {
	return &AdminHandler{compensation: compensation}
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type cancelOrderResponse struct {
	OrderID    string   `json:"orderId"`
	Operations []string `json:"operations"`
}

// CancelOrder runs the same compensation table a failed saga would, but
// starting from an explicit operator-supplied reason rather than a saga
// error.
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_failure", Message: err.Error()})
		return
	}

	result, err := h.compensation.CompensateWithReason(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		HandleError(c, err, "CancelOrder")
		return
	}

	c.JSON(http.StatusOK, cancelOrderResponse{OrderID: orderID, Operations: result.Operations})
}
