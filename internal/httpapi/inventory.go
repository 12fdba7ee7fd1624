package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/orderfulfillment/internal/inventoryengine"
	"example.com/orderfulfillment/internal/store"
)

// InventoryHandler exposes the read-side aggregate stock view.
type InventoryHandler struct {
	engine   *inventoryengine.Engine
	products store.ProductRepository
}

// NewInventoryHandler wires the collaborators needed to answer stock queries.
func NewInventoryHandler(engine *inventoryengine.Engine, products store.ProductRepository) *InventoryHandler {
	return &InventoryHandler{engine: engine, products: products}
}

type warehouseStock struct {
	WarehouseID string `json:"warehouseId"`
	Available   int64  `json:"available"`
	Reserved    int64  `json:"reserved"`
}

type inventoryResponse struct {
	ProductID      string           `json:"productId"`
	ProductName    string           `json:"productName"`
	TotalAvailable int64            `json:"totalAvailable"`
	TotalReserved  int64            `json:"totalReserved"`
	InStock        bool             `json:"inStock"`
	Warehouses     []warehouseStock `json:"warehouses"`
}

// GetInventory aggregates every warehouse row for a product into a single
// stock summary.
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	ctx := c.Request.Context()
	productID := c.Param("productId")

	product, err := h.products.GetByID(ctx, productID)
	if err != nil {
		HandleError(c, err, "GetInventory")
		return
	}

	rows, err := h.engine.InventoryByProduct(ctx, productID)
	if err != nil {
		HandleError(c, err, "GetInventory")
		return
	}

	resp := inventoryResponse{
		ProductID:   productID,
		ProductName: product.Name,
		Warehouses:  make([]warehouseStock, 0, len(rows)),
	}
	for _, row := range rows {
		resp.TotalAvailable += row.Available()
		resp.TotalReserved += row.Reserved
		resp.Warehouses = append(resp.Warehouses, warehouseStock{
			WarehouseID: row.WarehouseID,
			Available:   row.Available(),
			Reserved:    row.Reserved,
		})
	}
	resp.InStock = resp.TotalAvailable > 0

	c.JSON(http.StatusOK, resp)
}
