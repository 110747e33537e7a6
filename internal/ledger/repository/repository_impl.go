package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/orderbridge/internal/ledger/domain"
	"github.com/smallbiznis/orderbridge/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const orderRecordColumns = `id, order_id, order_type, status, attempts, last_error, pos_receipt_id, pos_receipt_number, customer_name, customer_phone, customer_email, total_price, raw_order, line_items, next_retry_at, processed_at, created_at, updated_at`

func (r *repo) CreateIfAbsent(ctx context.Context, gdb *gorm.DB, rec *domain.OrderRecord) (bool, error) {
	err := gdb.WithContext(ctx).Exec(
		`INSERT INTO order_records (`+orderRecordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.OrderID,
		rec.OrderType,
		rec.Status,
		rec.Attempts,
		rec.LastError,
		rec.POSReceiptID,
		rec.POSReceiptNumber,
		rec.CustomerName,
		rec.CustomerPhone,
		rec.CustomerEmail,
		rec.TotalPrice,
		rec.RawOrder,
		rec.LineItems,
		rec.NextRetryAt,
		rec.ProcessedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repo) FindByOrderID(ctx context.Context, gdb *gorm.DB, orderID string) (*domain.OrderRecord, error) {
	var rec domain.OrderRecord
	err := gdb.WithContext(ctx).Raw(
		`SELECT `+orderRecordColumns+` FROM order_records WHERE order_id = ?`,
		orderID,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) FindByReceiptNumber(ctx context.Context, gdb *gorm.DB, receiptNumber string) (*domain.OrderRecord, error) {
	var rec domain.OrderRecord
	err := gdb.WithContext(ctx).Raw(
		`SELECT `+orderRecordColumns+` FROM order_records WHERE pos_receipt_number = ?`,
		receiptNumber,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) Update(ctx context.Context, gdb *gorm.DB, rec *domain.OrderRecord) error {
	if rec == nil {
		return gorm.ErrInvalidData
	}
	return gdb.WithContext(ctx).Exec(
		`UPDATE order_records
		 SET status = ?, attempts = ?, last_error = ?, pos_receipt_id = ?, pos_receipt_number = ?,
		     customer_name = ?, customer_phone = ?, customer_email = ?, total_price = ?,
		     line_items = ?, next_retry_at = ?, processed_at = ?, updated_at = ?
		 WHERE order_id = ?`,
		rec.Status,
		rec.Attempts,
		rec.LastError,
		rec.POSReceiptID,
		rec.POSReceiptNumber,
		rec.CustomerName,
		rec.CustomerPhone,
		rec.CustomerEmail,
		rec.TotalPrice,
		rec.LineItems,
		rec.NextRetryAt,
		rec.ProcessedAt,
		rec.UpdatedAt,
		rec.OrderID,
	).Error
}

func (r *repo) ListDueForRetry(ctx context.Context, gdb *gorm.DB, now time.Time, limit int) ([]domain.OrderRecord, error) {
	var items []domain.OrderRecord
	err := gdb.WithContext(ctx).Raw(
		`SELECT `+orderRecordColumns+` FROM order_records
		 WHERE status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?
		 ORDER BY next_retry_at ASC LIMIT ?`,
		domain.StatusFailed,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListRecent(ctx context.Context, gdb *gorm.DB, limit int) ([]domain.OrderRecord, error) {
	var items []domain.OrderRecord
	err := gdb.WithContext(ctx).Raw(
		`SELECT `+orderRecordColumns+` FROM order_records ORDER BY created_at DESC LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByStatus(ctx context.Context, gdb *gorm.DB, status domain.Status, limit int) ([]domain.OrderRecord, error) {
	var items []domain.OrderRecord
	err := gdb.WithContext(ctx).Raw(
		`SELECT `+orderRecordColumns+` FROM order_records WHERE status = ? ORDER BY updated_at DESC LIMIT ?`,
		status,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountByStatus(ctx context.Context, gdb *gorm.DB) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status
		Total  int64
	}
	err := gdb.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS total FROM order_records GROUP BY status`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}
