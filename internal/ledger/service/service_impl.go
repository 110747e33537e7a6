package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultListLimit = 50

type Params struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	cfg   config.Config
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		cfg:   p.Cfg,
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.OrderRecord, bool, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, false, domain.ErrInvalidOrderID
	}

	now := s.clock.Now()
	rec := &domain.OrderRecord{
		ID:            s.genID.Generate().Int64(),
		OrderID:       orderID,
		OrderType:     req.OrderType,
		Status:        domain.StatusPending,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		TotalPrice:    req.TotalPrice,
		RawOrder:      datatypes.JSON(req.RawOrder),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.CreateIfAbsent(ctx, s.db, rec)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Info("order recorded", zap.String("order_id", orderID))
		return rec, true, nil
	}

	existing, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, domain.ErrNotFound
	}
	return existing, false, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.ErrInvalidOrderID
	}
	rec, err := s.repo.FindByOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *Service) MarkProcessed(ctx context.Context, orderID, receiptID, receiptNumber string) (*domain.OrderRecord, error) {
	rec, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rec.Status = domain.StatusProcessed
	rec.POSReceiptID = receiptID
	rec.POSReceiptNumber = receiptNumber
	rec.LastError = ""
	rec.NextRetryAt = nil
	rec.ProcessedAt = &now
	rec.UpdatedAt = now

	if err := s.repo.Update(ctx, s.db, rec); err != nil {
		return nil, err
	}
	s.log.Info("order processed",
		zap.String("order_id", rec.OrderID),
		zap.String("receipt_number", receiptNumber),
		zap.Int("attempts", rec.Attempts),
	)
	return rec, nil
}

func (s *Service) MarkFailed(ctx context.Context, orderID, cause string) (*domain.OrderRecord, error) {
	rec, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rec.Status = domain.StatusFailed
	rec.Attempts++
	rec.LastError = cause
	rec.UpdatedAt = now

	if rec.Attempts < s.cfg.RetryMaxAttempts {
		next := now.Add(s.backoff(rec.Attempts))
		rec.NextRetryAt = &next
	} else {
		rec.NextRetryAt = nil
	}

	if err := s.repo.Update(ctx, s.db, rec); err != nil {
		return nil, err
	}
	s.log.Warn("order failed",
		zap.String("order_id", rec.OrderID),
		zap.Int("attempts", rec.Attempts),
		zap.String("cause", cause),
		zap.Bool("retry_scheduled", rec.NextRetryAt != nil),
	)
	return rec, nil
}

func (s *Service) MarkDuplicate(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	rec, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.StatusDuplicate
	rec.NextRetryAt = nil
	rec.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, rec); err != nil {
		return nil, err
	}
	s.log.Info("order flagged duplicate", zap.String("order_id", rec.OrderID))
	return rec, nil
}

func (s *Service) MarkPending(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	rec, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.StatusPending
	rec.NextRetryAt = nil
	rec.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) SetLineItems(ctx context.Context, orderID string, lineItems []byte) error {
	rec, err := s.Get(ctx, orderID)
	if err != nil {
		return err
	}
	rec.LineItems = datatypes.JSON(lineItems)
	rec.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, rec)
}

func (s *Service) ListRecent(ctx context.Context, limit int) ([]domain.OrderRecord, error) {
	return s.repo.ListRecent(ctx, s.db, normalizeLimit(limit))
}

func (s *Service) ListFailed(ctx context.Context, limit int) ([]domain.OrderRecord, error) {
	return s.repo.ListByStatus(ctx, s.db, domain.StatusFailed, normalizeLimit(limit))
}

func (s *Service) ListDueForRetry(ctx context.Context, limit int) ([]domain.OrderRecord, error) {
	return s.repo.ListDueForRetry(ctx, s.db, s.clock.Now(), normalizeLimit(limit))
}

func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	counts, err := s.repo.CountByStatus(ctx, s.db)
	if err != nil {
		return nil, err
	}
	stats := &domain.Stats{
		Pending:   counts[domain.StatusPending],
		Processed: counts[domain.StatusProcessed],
		Failed:    counts[domain.StatusFailed],
		Duplicate: counts[domain.StatusDuplicate],
	}
	stats.Total = stats.Pending + stats.Processed + stats.Failed + stats.Duplicate
	return stats, nil
}

func (s *Service) CanRetry(rec *domain.OrderRecord) bool {
	if rec == nil {
		return false
	}
	return rec.Attempts < s.cfg.RetryMaxAttempts
}

// backoff doubles per attempt starting from the configured base.
func (s *Service) backoff(attempts int) time.Duration {
	d := s.cfg.RetryBackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
	}
	return d
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
