package domain

import (
	"context"
	"errors"
)

// RegisterRequest records the arrival of one order.
type RegisterRequest struct {
	OrderID       string
	OrderType     string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	TotalPrice    float64
	RawOrder      []byte
}

// Stats summarizes ledger state for the operational API.
type Stats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Duplicate int64 `json:"duplicate"`
}

type Service interface {
	// Register inserts a pending record for the order. When the order id
	// already exists it returns the existing record and created=false.
	Register(ctx context.Context, req RegisterRequest) (rec *OrderRecord, created bool, err error)
	Get(ctx context.Context, orderID string) (*OrderRecord, error)
	// MarkProcessed stamps the receipt onto the record and clears any
	// retry schedule.
	MarkProcessed(ctx context.Context, orderID, receiptID, receiptNumber string) (*OrderRecord, error)
	// MarkFailed bumps the attempt count and schedules the next retry
	// while the record is under the attempt ceiling.
	MarkFailed(ctx context.Context, orderID, cause string) (*OrderRecord, error)
	// MarkDuplicate flags a replay of an already processed order.
	MarkDuplicate(ctx context.Context, orderID string) (*OrderRecord, error)
	// MarkPending returns a record to the pending state before another
	// receipt attempt, keeping the attempt count.
	MarkPending(ctx context.Context, orderID string) (*OrderRecord, error)
	// SetLineItems stores the mapped receipt lines for inspection.
	SetLineItems(ctx context.Context, orderID string, lineItems []byte) error
	ListRecent(ctx context.Context, limit int) ([]OrderRecord, error)
	ListFailed(ctx context.Context, limit int) ([]OrderRecord, error)
	ListDueForRetry(ctx context.Context, limit int) ([]OrderRecord, error)
	Stats(ctx context.Context) (*Stats, error)
	// CanRetry reports whether the record is still under the ceiling.
	CanRetry(rec *OrderRecord) bool
}

var (
	ErrNotFound       = errors.New("order_not_found")
	ErrInvalidOrderID = errors.New("invalid_order_id")
)
