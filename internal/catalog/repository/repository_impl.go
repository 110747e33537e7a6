package repository

import (
	"context"

	"github.com/smallbiznis/orderbridge/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, entry *domain.CatalogEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO catalog_entries (id, sku, handle, canonical_name, category, source_item_name, size, price, pos_item_id, pos_variant_id, auto_created, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.SKU,
		entry.Handle,
		entry.CanonicalName,
		entry.Category,
		entry.SourceItemName,
		entry.Size,
		entry.Price,
		entry.POSItemID,
		entry.POSVariantID,
		entry.AutoCreated,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) FindBySourceName(ctx context.Context, db *gorm.DB, name, size string) (*domain.CatalogEntry, error) {
	var e domain.CatalogEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, handle, canonical_name, category, source_item_name, size, price, pos_item_id, pos_variant_id, auto_created, created_at, updated_at
		 FROM catalog_entries WHERE source_item_name = ? AND size = ?`,
		name,
		size,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) FindAnyBySourceName(ctx context.Context, db *gorm.DB, name string) (*domain.CatalogEntry, error) {
	var e domain.CatalogEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, handle, canonical_name, category, source_item_name, size, price, pos_item_id, pos_variant_id, auto_created, created_at, updated_at
		 FROM catalog_entries WHERE source_item_name = ? ORDER BY created_at ASC LIMIT 1`,
		name,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) FindBySKU(ctx context.Context, db *gorm.DB, sku string) (*domain.CatalogEntry, error) {
	var e domain.CatalogEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, handle, canonical_name, category, source_item_name, size, price, pos_item_id, pos_variant_id, auto_created, created_at, updated_at
		 FROM catalog_entries WHERE sku = ?`,
		sku,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) ListSKUs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var skus []string
	err := db.WithContext(ctx).Raw(
		`SELECT sku FROM catalog_entries`,
	).Scan(&skus).Error
	if err != nil {
		return nil, err
	}
	return skus, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.CatalogEntry, error) {
	var items []domain.CatalogEntry
	err := db.WithContext(ctx).Raw(
		`SELECT id, sku, handle, canonical_name, category, source_item_name, size, price, pos_item_id, pos_variant_id, auto_created, created_at, updated_at
		 FROM catalog_entries ORDER BY created_at ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
