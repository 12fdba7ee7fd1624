// Package inventoryengine implements versioned, optimistic-concurrency
// stock reservation across warehouses. It is the anti-oversell guarantee
// for the whole system: every mutation goes through store.InventoryRepository
// and its `WHERE ... AND version = ?` conditional writes.
package inventoryengine

import (
	"context"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
	"example.com/orderfulfillment/internal/store"
	"example.com/orderfulfillment/pkg/logger"
	"example.com/orderfulfillment/pkg/metrics"
)

// ReservedItem records which warehouse ultimately serviced a product line.
type ReservedItem struct {
	ProductID   string
	WarehouseID string
	Quantity    int64
}

// Engine предоставляет Reserve/Release/ConfirmShipment/Restock поверх
// InventoryRepository, добавляя алгоритм выбора склада к примитивному
// Reserve репозитория.
type Engine struct {
	repo store.InventoryRepository
}

// New создаёт inventory engine поверх заданного репозитория.
func New(repo store.InventoryRepository) *Engine {
	return &Engine{repo: repo}
}

// ReserveItem selects a warehouse for a single product line: enumerate
// candidate rows, for each re-read the freshest version, attempt Reserve,
// retry up to three times on a version conflict with backoff, then move to
// the next candidate. Returns apperr.ErrInsufficientStock if no warehouse
// can serve the quantity.
func (e *Engine) ReserveItem(ctx context.Context, productID string, qty int64) (ReservedItem, error) {
	candidates, err := e.repo.ListByProduct(ctx, productID)
	if err != nil {
		return ReservedItem{}, err
	}
	if len(candidates) == 0 {
		metrics.InventoryReservationAttemptsTotal.WithLabelValues("insufficient_stock").Inc()
		return ReservedItem{}, apperr.ErrInsufficientStock
	}

	log := logger.FromContext(ctx)

	for _, candidate := range candidates {
		warehouseID := candidate.WarehouseID

		for attempt := 1; attempt <= 4; attempt++ {
			fresh, err := e.repo.Get(ctx, productID, warehouseID)
			if err != nil {
				return ReservedItem{}, err
			}
			if fresh.Available() < qty {
				metrics.InventoryReservationAttemptsTotal.WithLabelValues("insufficient_stock").Inc()
				break // this warehouse cannot serve it regardless of version; try the next one
			}

			err = e.repo.Reserve(ctx, productID, warehouseID, qty, fresh.Version)
			if err == nil {
				metrics.InventoryReservationAttemptsTotal.WithLabelValues("reserved").Inc()
				return ReservedItem{ProductID: productID, WarehouseID: warehouseID, Quantity: qty}, nil
			}
			if apperr.KindOf(err) != apperr.KindConcurrencyConflict {
				return ReservedItem{}, err
			}

			metrics.InventoryReservationAttemptsTotal.WithLabelValues("conflict_retry").Inc()
			log.Debug().
				Str("product_id", productID).
				Str("warehouse_id", warehouseID).
				Int("attempt", attempt).
				Msg("Конфликт версии при резервировании, повтор")

			if attempt < 4 {
				sleepBackoff(ctx, attempt)
			}
		}
	}

	metrics.InventoryReservationAttemptsTotal.WithLabelValues("insufficient_stock").Inc()
	return ReservedItem{}, apperr.ErrInsufficientStock
}

// Release reverses a previously successful ReserveItem (compensation path).
func (e *Engine) Release(ctx context.Context, productID, warehouseID string, qty int64) error {
	return e.repo.Release(ctx, productID, warehouseID, qty)
}

// ConfirmShipment finalizes a reservation into a physical stock decrement.
// It is a separate operation from Reserve so that shipment confirmation
// (decrementing physical stock) can happen independently of the saga's
// success path, which currently does not call it.
func (e *Engine) ConfirmShipment(ctx context.Context, productID, warehouseID string, qty int64) error {
	return e.repo.ConfirmShipment(ctx, productID, warehouseID, qty)
}

// Restock increases physical quantity at a warehouse.
func (e *Engine) Restock(ctx context.Context, productID, warehouseID string, qty int64) error {
	return e.repo.Restock(ctx, productID, warehouseID, qty)
}

// Inventory returns the raw row, used by the read-side /inventory endpoint.
func (e *Engine) Inventory(ctx context.Context, productID, warehouseID string) (*domain.Inventory, error) {
	return e.repo.Get(ctx, productID, warehouseID)
}

// InventoryByProduct returns every warehouse row for a product, used by the
// aggregate /inventory/{productId} view.
func (e *Engine) InventoryByProduct(ctx context.Context, productID string) ([]*domain.Inventory, error) {
	return e.repo.ListByProduct(ctx, productID)
}
