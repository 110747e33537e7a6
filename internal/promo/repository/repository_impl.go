package repository

import (
	"context"

	"github.com/smallbiznis/orderbridge/internal/promo/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const promoRecordColumns = `id, promo_id, pos_discount_id, kind, value, name, created_at, updated_at`

func (r *repo) Create(ctx context.Context, db *gorm.DB, rec *domain.PromoRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO promo_records (`+promoRecordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.PromoID,
		rec.POSDiscountID,
		rec.Kind,
		rec.Value,
		rec.Name,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Error
}

func (r *repo) FindByPromoID(ctx context.Context, db *gorm.DB, promoID string) (*domain.PromoRecord, error) {
	var rec domain.PromoRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+promoRecordColumns+` FROM promo_records WHERE promo_id = ?`,
		promoID,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, rec *domain.PromoRecord) error {
	if rec == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE promo_records
		 SET pos_discount_id = ?, kind = ?, value = ?, name = ?, updated_at = ?
		 WHERE promo_id = ?`,
		rec.POSDiscountID,
		rec.Kind,
		rec.Value,
		rec.Name,
		rec.UpdatedAt,
		rec.PromoID,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.PromoRecord, error) {
	var items []domain.PromoRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+promoRecordColumns+` FROM promo_records ORDER BY created_at ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
