package domain

import (
	"context"
	"errors"
)

// ResolveRequest describes one promotion line from an order. The raw
// cart discount figures drive the classification: a rate below one
// percent of one means the source reported an absolute amount.
type ResolveRequest struct {
	PromoID          string
	Name             string
	CartDiscount     float64
	CartDiscountRate float64
}

type Service interface {
	// Resolve returns the POS discount for the promotion, creating or
	// updating it in the POS as needed.
	Resolve(ctx context.Context, req ResolveRequest) (*PromoRecord, error)
	List(ctx context.Context) ([]PromoRecord, error)
}

var (
	ErrInvalidPromo       = errors.New("invalid_promo")
	ErrDiscountSyncFailed = errors.New("discount_sync_failed")
)
