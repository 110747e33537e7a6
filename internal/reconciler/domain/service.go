package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/orderbridge/internal/ordersource"
)

// EventType classifies the terminal outcome of one webhook delivery.
type EventType string

const (
	EventOrderProcessed   EventType = "order_processed"
	EventDuplicateOrder   EventType = "duplicate_order"
	EventTableReservation EventType = "table_reservation"
	EventOrderIgnored     EventType = "order_ignored"
	EventOrderFailed      EventType = "order_failed"
)

// MappingSummary reports how the order lines resolved against the
// catalog.
type MappingSummary struct {
	TotalItems    int      `json:"total_items"`
	MappedItems   int      `json:"mapped_items"`
	UnmappedItems int      `json:"unmapped_items"`
	UnmappedNames []string `json:"unmapped_names,omitempty"`
}

// Result is the outcome reported back to the webhook caller.
type Result struct {
	Success       bool            `json:"success"`
	Message       string          `json:"message"`
	OrderID       string          `json:"order_id"`
	EventType     EventType       `json:"event_type"`
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	Mapping       *MappingSummary `json:"mapping,omitempty"`
}

type Service interface {
	// Process drives one order through the ledger, the catalog and the
	// POS until a receipt exists or the attempt is recorded as failed.
	Process(ctx context.Context, order ordersource.Order, raw []byte) (*Result, error)
	// Retry re-drives a previously failed order from its stored payload.
	Retry(ctx context.Context, orderID string) (*Result, error)
}

var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrRetryExhausted    = errors.New("retry_exhausted")
	ErrOrderNotRetryable = errors.New("order_not_retryable")
)
