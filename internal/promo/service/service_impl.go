package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/pos"
	"github.com/smallbiznis/orderbridge/internal/promo/domain"
	"github.com/smallbiznis/orderbridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Rates below this threshold mean the source reported a flat amount
// instead of a percentage.
const fixedAmountRateThreshold = 0.01

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	POS   pos.Client
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	pos   pos.Client
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("promo.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		pos:   p.POS,
	}
}

func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.PromoRecord, error) {
	promoID := strings.TrimSpace(req.PromoID)
	if promoID == "" {
		return nil, domain.ErrInvalidPromo
	}

	kind, value := classify(req)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Promotion " + promoID
	}

	rec, err := s.repo.FindByPromoID(ctx, s.db, promoID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		if rec.Kind == kind && rec.Value == value {
			return rec, nil
		}
		return s.syncExisting(ctx, rec, kind, value, name)
	}

	created, err := s.pos.CreateDiscount(ctx, posDiscount("", kind, value, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDiscountSyncFailed, err)
	}

	now := s.clock.Now()
	rec = &domain.PromoRecord{
		ID:            s.genID.Generate().Int64(),
		PromoID:       promoID,
		POSDiscountID: created.ID,
		Kind:          kind,
		Value:         value,
		Name:          name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, s.db, rec); err != nil {
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindByPromoID(ctx, s.db, promoID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				s.log.Warn("promo sync lost race, converging on existing record",
					zap.String("promo_id", promoID),
					zap.String("orphan_pos_discount_id", created.ID),
				)
				if existing.Kind != kind || existing.Value != value {
					return s.syncExisting(ctx, existing, kind, value, name)
				}
				return existing, nil
			}
		}
		return nil, err
	}

	s.log.Info("promo discount created",
		zap.String("promo_id", promoID),
		zap.String("pos_discount_id", rec.POSDiscountID),
		zap.String("kind", string(kind)),
		zap.Float64("value", value),
	)
	return rec, nil
}

func (s *Service) List(ctx context.Context) ([]domain.PromoRecord, error) {
	return s.repo.List(ctx, s.db)
}

// syncExisting pushes changed terms to the POS discount that already
// backs the promotion, keeping its id stable.
func (s *Service) syncExisting(ctx context.Context, rec *domain.PromoRecord, kind domain.Kind, value float64, name string) (*domain.PromoRecord, error) {
	if _, err := s.pos.UpdateDiscount(ctx, posDiscount(rec.POSDiscountID, kind, value, name)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDiscountSyncFailed, err)
	}

	rec.Kind = kind
	rec.Value = value
	rec.Name = name
	rec.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, rec); err != nil {
		return nil, err
	}
	s.log.Info("promo discount updated",
		zap.String("promo_id", rec.PromoID),
		zap.String("pos_discount_id", rec.POSDiscountID),
		zap.String("kind", string(kind)),
		zap.Float64("value", value),
	)
	return rec, nil
}

func classify(req domain.ResolveRequest) (domain.Kind, float64) {
	if math.Abs(req.CartDiscountRate) < fixedAmountRateThreshold {
		return domain.KindFixedAmount, math.Abs(req.CartDiscount)
	}
	return domain.KindPercent, req.CartDiscountRate * 100
}

func posDiscount(id string, kind domain.Kind, value float64, name string) pos.Discount {
	d := pos.Discount{
		ID:   id,
		Name: name,
	}
	switch kind {
	case domain.KindFixedAmount:
		d.Type = pos.DiscountFixedAmount
		d.DiscountAmount = value
	default:
		d.Type = pos.DiscountFixedPercent
		d.DiscountPercent = value
	}
	return d
}
