package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// CreateIfAbsent inserts the record and reports whether this call won
	// the insert. On a duplicate order id it returns false with no error.
	CreateIfAbsent(ctx context.Context, db *gorm.DB, rec *OrderRecord) (bool, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*OrderRecord, error)
	FindByReceiptNumber(ctx context.Context, db *gorm.DB, receiptNumber string) (*OrderRecord, error)
	Update(ctx context.Context, db *gorm.DB, rec *OrderRecord) error
	ListDueForRetry(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]OrderRecord, error)
	ListRecent(ctx context.Context, db *gorm.DB, limit int) ([]OrderRecord, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status Status, limit int) ([]OrderRecord, error)
	CountByStatus(ctx context.Context, db *gorm.DB) (map[Status]int64, error)
}
