package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/orderbridge/internal/clock"
	ledgerdomain "github.com/smallbiznis/orderbridge/internal/ledger/domain"
	reconcilerdomain "github.com/smallbiznis/orderbridge/internal/reconciler/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("scheduler requires ledger, reconciler, clock and logger")

type Params struct {
	fx.In

	Log        *zap.Logger
	Ledger     ledgerdomain.Service
	Reconciler reconcilerdomain.Service
	Clock      clock.Clock
	Config     Config `optional:"true"`
}

// Scheduler re-drives failed orders whose backoff has elapsed.
type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	ledger     ledgerdomain.Service
	reconciler reconcilerdomain.Service
	clock      clock.Clock
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Ledger == nil || p.Reconciler == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Config.withDefaults(),
		ledger:     p.Ledger,
		reconciler: p.Reconciler,
		clock:      p.Clock,
	}, nil
}

// RunOnce drains one batch of due orders. Individual failures are
// recorded by the reconciler and never stop the batch.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	due, err := s.ledger.ListDueForRetry(ctx, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	s.log.Info("retrying due orders", zap.Int("count", len(due)))
	for _, rec := range due {
		result, err := s.reconciler.Retry(ctx, rec.OrderID)
		if err != nil {
			if errors.Is(err, reconcilerdomain.ErrRetryExhausted) ||
				errors.Is(err, reconcilerdomain.ErrOrderNotRetryable) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn("retry errored",
				zap.String("order_id", rec.OrderID),
				zap.Error(err),
			)
			continue
		}
		if !result.Success {
			s.log.Warn("retry did not complete",
				zap.String("order_id", rec.OrderID),
				zap.String("message", result.Message),
			)
		}
	}
	return nil
}

// RunForever loops RunOnce on the configured interval until the context
// is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.log.Info("retry worker started",
		zap.Duration("interval", s.cfg.RunInterval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("retry worker stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("retry pass failed", zap.Error(err))
			}
		}
	}
}
