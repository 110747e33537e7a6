package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, entry *CatalogEntry) error
	FindBySourceName(ctx context.Context, db *gorm.DB, name, size string) (*CatalogEntry, error)
	FindAnyBySourceName(ctx context.Context, db *gorm.DB, name string) (*CatalogEntry, error)
	FindBySKU(ctx context.Context, db *gorm.DB, sku string) (*CatalogEntry, error)
	ListSKUs(ctx context.Context, db *gorm.DB) ([]string, error)
	List(ctx context.Context, db *gorm.DB) ([]CatalogEntry, error)
}
