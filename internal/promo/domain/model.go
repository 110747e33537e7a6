package domain

import (
	"time"
)

// Kind classifies how the promo reduces the total.
type Kind string

const (
	// KindPercent is a percentage off the receipt total.
	KindPercent Kind = "percent_of_total"
	// KindFixedAmount is an absolute amount off the receipt total.
	KindFixedAmount Kind = "fixed_amount"
)

// PromoRecord pins one order-source promotion to the POS discount that
// represents it. PromoID is the stable promotion type id so every order
// carrying the same campaign reuses one discount.
type PromoRecord struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	PromoID       string    `json:"promo_id" gorm:"type:text;not null;uniqueIndex:ux_promo_records_promo_id"`
	POSDiscountID string    `json:"pos_discount_id" gorm:"column:pos_discount_id;type:text;not null"`
	Kind          Kind      `json:"kind" gorm:"type:text;not null"`
	Value         float64   `json:"value" gorm:"not null;default:0"`
	Name          string    `json:"name" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PromoRecord) TableName() string { return "promo_records" }
