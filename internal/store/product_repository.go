package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"example.com/orderfulfillment/internal/apperr"
	"example.com/orderfulfillment/internal/domain"
)

// ProductRepository exposes the read-mostly catalog of sellable products.
type ProductRepository interface {
	GetByID(ctx context.Context, productID string) (*domain.Product, error)
	ListActive(ctx context.Context, offset, limit int) ([]*domain.Product, int64, error)
}

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository создаёт GORM-репозиторий каталога товаров.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var model ProductModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrProductNotFound
		}
		return nil, apperr.Wrap(apperr.KindFatalInternal, "чтение товара", err)
	}
	return productToDomain(&model), nil
}

func (r *productRepository) ListActive(ctx context.Context, offset, limit int) ([]*domain.Product, int64, error) {
	var models []ProductModel
	var total int64

	query := r.db.WithContext(ctx).Model(&ProductModel{}).Where("active = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.KindFatalInternal, "подсчёт товаров", err)
	}
	if err := query.Order("name ASC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, apperr.Wrap(apperr.KindFatalInternal, "список товаров", err)
	}

	out := make([]*domain.Product, len(models))
	for i := range models {
		out[i] = productToDomain(&models[i])
	}
	return out, total, nil
}
