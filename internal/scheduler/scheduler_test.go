package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/orderbridge/internal/clock"
	ledgerdomain "github.com/smallbiznis/orderbridge/internal/ledger/domain"
	"github.com/smallbiznis/orderbridge/internal/ordersource"
	reconcilerdomain "github.com/smallbiznis/orderbridge/internal/reconciler/domain"
	"github.com/smallbiznis/orderbridge/internal/scheduler"
	"go.uber.org/zap"
)

type fakeLedger struct {
	ledgerdomain.Service

	due     []ledgerdomain.OrderRecord
	listErr error
}

func (f *fakeLedger) ListDueForRetry(ctx context.Context, limit int) ([]ledgerdomain.OrderRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.due) {
		return f.due[:limit], nil
	}
	return f.due, nil
}

type fakeReconciler struct {
	retried []string
	errs    map[string]error
}

func (f *fakeReconciler) Process(ctx context.Context, order ordersource.Order, raw []byte) (*reconcilerdomain.Result, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeReconciler) Retry(ctx context.Context, orderID string) (*reconcilerdomain.Result, error) {
	f.retried = append(f.retried, orderID)
	if err := f.errs[orderID]; err != nil {
		return nil, err
	}
	return &reconcilerdomain.Result{
		Success:   true,
		OrderID:   orderID,
		EventType: reconcilerdomain.EventOrderProcessed,
	}, nil
}

func newScheduler(t *testing.T, ledger ledgerdomain.Service, rec reconcilerdomain.Service) *scheduler.Scheduler {
	t.Helper()

	sched, err := scheduler.New(scheduler.Params{
		Log:        zap.NewNop(),
		Ledger:     ledger,
		Reconciler: rec,
		Clock:      clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched
}

func TestRunOnceRetriesDueOrders(t *testing.T) {
	ledger := &fakeLedger{due: []ledgerdomain.OrderRecord{
		{OrderID: "order-1", Status: ledgerdomain.StatusFailed},
		{OrderID: "order-2", Status: ledgerdomain.StatusFailed},
	}}
	rec := &fakeReconciler{}
	sched := newScheduler(t, ledger, rec)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(rec.retried) != 2 {
		t.Fatalf("expected 2 retries, got %d", len(rec.retried))
	}
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	ledger := &fakeLedger{due: []ledgerdomain.OrderRecord{
		{OrderID: "order-1", Status: ledgerdomain.StatusFailed},
		{OrderID: "order-2", Status: ledgerdomain.StatusFailed},
		{OrderID: "order-3", Status: ledgerdomain.StatusFailed},
	}}
	rec := &fakeReconciler{errs: map[string]error{
		"order-1": reconcilerdomain.ErrRetryExhausted,
		"order-2": errors.New("pos unavailable"),
	}}
	sched := newScheduler(t, ledger, rec)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(rec.retried) != 3 {
		t.Fatalf("expected all due orders attempted, got %d", len(rec.retried))
	}
}

func TestRunOnceNoWorkIsQuiet(t *testing.T) {
	ledger := &fakeLedger{}
	rec := &fakeReconciler{}
	sched := newScheduler(t, ledger, rec)

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(rec.retried) != 0 {
		t.Fatalf("expected no retries, got %d", len(rec.retried))
	}
}

func TestRunOncePropagatesListError(t *testing.T) {
	ledger := &fakeLedger{listErr: errors.New("db down")}
	sched := newScheduler(t, ledger, &fakeReconciler{})

	if err := sched.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from ledger listing")
	}
}

func TestNewRejectsMissingDeps(t *testing.T) {
	_, err := scheduler.New(scheduler.Params{Log: zap.NewNop()})
	if !errors.Is(err, scheduler.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
