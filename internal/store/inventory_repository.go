package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
)

// InventoryRepository provides version-guarded mutations over warehouse
// stock rows. Reserve goes through `WHERE ... AND version = ?` so two
// concurrent reservations against the same row can never both succeed;
// Release, ConfirmShipment and Restock do not check Version (they guard on
// the stock columns instead) but still increment it.
type InventoryRepository interface {
	Get(ctx context.Context, productID, warehouseID string) (*domain.Inventory, error)

	// ListByProduct returns every warehouse row carrying stock for a
	// product, used by the warehouse-selection algorithm to find a
	// candidate with enough availability.
	ListByProduct(ctx context.Context, productID string) ([]*domain.Inventory, error)

	// Reserve increases Reserved by qty if Available() >= qty and Version
	// still matches. Returns apperr.ErrConcurrencyConflict on a version
	// mismatch (caller retries against a freshly read row) and
	// apperr.ErrInsufficientStock if Available() < qty even before the
	// version check.
	Reserve(ctx context.Context, productID, warehouseID string, qty int64, expectedVersion int64) error

	// Release decreases Reserved by qty (compensation path) with a single
	// UPDATE that does not check Version, so a stale version never makes it
	// fail. It is not retried; it returns an error if Reserved < qty.
	Release(ctx context.Context, productID, warehouseID string, qty int64) error

	// ConfirmShipment decreases both Quantity and Reserved by qty,
	// finalizing a reservation into a physical stock decrement.
	ConfirmShipment(ctx context.Context, productID, warehouseID string, qty int64) error

	// Restock increases Quantity, used by inventory replenishment jobs
	// (outside the saga's scope but required for the engine to be usable
	// end to end).
	Restock(ctx context.Context, productID, warehouseID string, qty int64) error
}

type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository создаёт GORM-репозиторий остатков.
func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Get(ctx context.Context, productID, warehouseID string) (*domain.Inventory, error) {
	var model InventoryModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrInventoryNotFound
		}
		return nil, apperr.Wrap(apperr.KindFatalInternal, "чтение остатка", err)
	}
	return inventoryToDomain(&model), nil
}

func (r *inventoryRepository) ListByProduct(ctx context.Context, productID string) ([]*domain.Inventory, error) {
	var models []InventoryModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("warehouse_id ASC").
		Find(&models).Error; err != nil {
		return nil, apperr.Wrap(apperr.KindFatalInternal, "список остатков по товару", err)
	}
	out := make([]*domain.Inventory, len(models))
	for i := range models {
		out[i] = inventoryToDomain(&models[i])
	}
	return out, nil
}

func (r *inventoryRepository) Reserve(ctx context.Context, productID, warehouseID string, qty int64, expectedVersion int64) error {
	result := r.db.WithContext(ctx).
		Model(&InventoryModel{}).
		Where("product_id = ? AND warehouse_id = ? AND version = ? AND (quantity - reserved) >= ?",
			productID, warehouseID, expectedVersion, qty).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved + ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "резервирование остатка", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	// Differentiate a stale version from genuinely insufficient stock so the
	// warehouse-selection loop knows whether to retry this row or move on.
	current, err := r.Get(ctx, productID, warehouseID)
	if err != nil {
		return err
	}
	if current.Available() < qty {
		return apperr.ErrInsufficientStock
	}
	return apperr.ErrConcurrencyConflict
}

func (r *inventoryRepository) Release(ctx context.Context, productID, warehouseID string, qty int64) error {
	result := r.db.WithContext(ctx).
		Model(&InventoryModel{}).
		Where("product_id = ? AND warehouse_id = ? AND reserved >= ?", productID, warehouseID, qty).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved - ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "освобождение остатка", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.New(apperr.KindFatalInternal, "попытка освободить больше остатка, чем зарезервировано")
	}
	return nil
}

func (r *inventoryRepository) ConfirmShipment(ctx context.Context, productID, warehouseID string, qty int64) error {
	result := r.db.WithContext(ctx).
		Model(&InventoryModel{}).
		Where("product_id = ? AND warehouse_id = ? AND reserved >= ? AND quantity >= ?",
			productID, warehouseID, qty, qty).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved - ?", qty),
			"quantity": gorm.Expr("quantity - ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "подтверждение отгрузки остатка", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.New(apperr.KindFatalInternal, "подтверждение отгрузки несогласованного остатка")
	}
	return nil
}

func (r *inventoryRepository) Restock(ctx context.Context, productID, warehouseID string, qty int64) error {
	result := r.db.WithContext(ctx).
		Model(&InventoryModel{}).
		Where("product_id = ? AND warehouse_id = ?", productID, warehouseID).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", qty),
			"version":  gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return apperr.Wrap(apperr.KindFatalInternal, "пополнение остатка", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrInventoryNotFound
	}
	return nil
}
