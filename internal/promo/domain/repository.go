package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, rec *PromoRecord) error
	FindByPromoID(ctx context.Context, db *gorm.DB, promoID string) (*PromoRecord, error)
	Update(ctx context.Context, db *gorm.DB, rec *PromoRecord) error
	List(ctx context.Context, db *gorm.DB) ([]PromoRecord, error)
}
