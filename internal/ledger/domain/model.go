package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Status is the processing state of one received order.
type Status string

const (
	// StatusPending means the order was recorded but no receipt has been
	// confirmed yet.
	StatusPending Status = "pending"
	// StatusProcessed means a POS receipt exists for the order.
	StatusProcessed Status = "processed"
	// StatusFailed means the last attempt errored; the record may still
	// be retried while under the attempt ceiling.
	StatusFailed Status = "failed"
	// StatusDuplicate means a replayed webhook arrived after the order
	// was already processed.
	StatusDuplicate Status = "duplicate"
)

// OrderRecord is the durable ledger row for one order-source order. The
// unique order id index is what makes webhook replays converge on a
// single row.
type OrderRecord struct {
	ID               int64          `json:"id" gorm:"primaryKey"`
	OrderID          string         `json:"order_id" gorm:"type:text;not null;uniqueIndex:ux_order_records_order_id"`
	OrderType        string         `json:"order_type" gorm:"type:text"`
	Status           Status         `json:"status" gorm:"type:text;not null;index"`
	Attempts         int            `json:"attempts" gorm:"not null;default:0"`
	LastError        string         `json:"last_error,omitempty" gorm:"type:text"`
	POSReceiptID     string         `json:"pos_receipt_id,omitempty" gorm:"column:pos_receipt_id;type:text"`
	POSReceiptNumber string         `json:"pos_receipt_number,omitempty" gorm:"column:pos_receipt_number;type:text"`
	CustomerName     string         `json:"customer_name" gorm:"type:text"`
	CustomerPhone    string         `json:"customer_phone" gorm:"type:text"`
	CustomerEmail    string         `json:"customer_email" gorm:"type:text"`
	TotalPrice       float64        `json:"total_price" gorm:"not null;default:0"`
	RawOrder         datatypes.JSON `json:"-" gorm:"type:jsonb"`
	LineItems        datatypes.JSON `json:"line_items,omitempty" gorm:"type:jsonb"`
	NextRetryAt      *time.Time     `json:"next_retry_at,omitempty" gorm:"index"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderRecord) TableName() string { return "order_records" }
