package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	catalogdomain "github.com/smallbiznis/orderbridge/internal/catalog/domain"
	"github.com/smallbiznis/orderbridge/internal/config"
	ledgerdomain "github.com/smallbiznis/orderbridge/internal/ledger/domain"
	"github.com/smallbiznis/orderbridge/internal/observability"
	"github.com/smallbiznis/orderbridge/internal/ordersource"
	promodomain "github.com/smallbiznis/orderbridge/internal/promo/domain"
	reconcilerdomain "github.com/smallbiznis/orderbridge/internal/reconciler/domain"
	"github.com/smallbiznis/orderbridge/internal/server"
	"go.uber.org/zap"
)

type fakeReconciler struct {
	processed []ordersource.Order
	retryErr  error
}

func (f *fakeReconciler) Process(ctx context.Context, order ordersource.Order, raw []byte) (*reconcilerdomain.Result, error) {
	f.processed = append(f.processed, order)
	return &reconcilerdomain.Result{
		Success:       true,
		Message:       "receipt created",
		OrderID:       order.ID.String(),
		EventType:     reconcilerdomain.EventOrderProcessed,
		ReceiptNumber: "3-1001",
	}, nil
}

func (f *fakeReconciler) Retry(ctx context.Context, orderID string) (*reconcilerdomain.Result, error) {
	if f.retryErr != nil {
		return nil, f.retryErr
	}
	return &reconcilerdomain.Result{
		Success:   true,
		OrderID:   orderID,
		EventType: reconcilerdomain.EventOrderProcessed,
	}, nil
}

type fakeLedger struct {
	ledgerdomain.Service

	records map[string]*ledgerdomain.OrderRecord
}

func (f *fakeLedger) Get(ctx context.Context, orderID string) (*ledgerdomain.OrderRecord, error) {
	rec, ok := f.records[orderID]
	if !ok {
		return nil, ledgerdomain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeLedger) ListRecent(ctx context.Context, limit int) ([]ledgerdomain.OrderRecord, error) {
	out := make([]ledgerdomain.OrderRecord, 0, len(f.records))
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeLedger) ListFailed(ctx context.Context, limit int) ([]ledgerdomain.OrderRecord, error) {
	var out []ledgerdomain.OrderRecord
	for _, rec := range f.records {
		if rec.Status == ledgerdomain.StatusFailed {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (f *fakeLedger) Stats(ctx context.Context) (*ledgerdomain.Stats, error) {
	stats := &ledgerdomain.Stats{}
	for _, rec := range f.records {
		stats.Total++
		switch rec.Status {
		case ledgerdomain.StatusProcessed:
			stats.Processed++
		case ledgerdomain.StatusFailed:
			stats.Failed++
		case ledgerdomain.StatusPending:
			stats.Pending++
		case ledgerdomain.StatusDuplicate:
			stats.Duplicate++
		}
	}
	return stats, nil
}

type fakeCatalog struct {
	entries map[string]*catalogdomain.CatalogEntry
}

func (f *fakeCatalog) Resolve(ctx context.Context, req catalogdomain.ResolveRequest) (*catalogdomain.Match, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCatalog) Lookup(ctx context.Context, name, size string) (*catalogdomain.Match, error) {
	if entry, ok := f.entries[name]; ok {
		return &catalogdomain.Match{Entry: entry, Type: catalogdomain.MatchExact}, nil
	}
	return nil, catalogdomain.ErrNoMapping
}

func (f *fakeCatalog) List(ctx context.Context) ([]catalogdomain.CatalogEntry, error) {
	out := make([]catalogdomain.CatalogEntry, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, nil
}

type fakePromo struct{}

func (fakePromo) Resolve(ctx context.Context, req promodomain.ResolveRequest) (*promodomain.PromoRecord, error) {
	return nil, errors.New("not implemented")
}

func (fakePromo) List(ctx context.Context) ([]promodomain.PromoRecord, error) {
	return nil, nil
}

type fakeSource struct {
	verify    bool
	signature string
}

func (f *fakeSource) GetOrder(ctx context.Context, orderID string) (*ordersource.Order, error) {
	return nil, ordersource.ErrNotFound
}

func (f *fakeSource) GetMenu(ctx context.Context) ([]ordersource.MenuItem, error) {
	return nil, nil
}

func (f *fakeSource) VerifySignature(payload []byte, signature string) error {
	if !f.verify {
		return nil
	}
	if signature != f.signature {
		return ordersource.ErrInvalidSignature
	}
	return nil
}

func (f *fakeSource) VerificationEnabled() bool {
	return f.verify
}

type testEnv struct {
	srv        *server.Server
	reconciler *fakeReconciler
	ledger     *fakeLedger
	catalog    *fakeCatalog
	source     *fakeSource
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	engine := server.NewEngine(observability.Config{}, nil)
	env := &testEnv{
		reconciler: &fakeReconciler{},
		ledger:     &fakeLedger{records: map[string]*ledgerdomain.OrderRecord{}},
		catalog:    &fakeCatalog{entries: map[string]*catalogdomain.CatalogEntry{}},
		source:     &fakeSource{},
	}
	env.srv = server.NewServer(server.ServerParams{
		Gin:           engine,
		Cfg:           config.Config{},
		Log:           zap.NewNop(),
		ReconcilerSvc: env.reconciler,
		LedgerSvc:     env.ledger,
		CatalogSvc:    env.catalog,
		PromoSvc:      fakePromo{},
		Source:        env.source,
	})
	return env
}

func doRequest(t *testing.T, env *testEnv, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.srv.Engine().ServeHTTP(w, req)
	return w
}

func TestWebhookProcessesSingleOrder(t *testing.T) {
	env := newTestServer(t)

	payload := `{"id":8842615,"type":"delivery","status":"accepted","total_price":7,"items":[{"id":1,"type":"item","name":"Tea","price":3.5,"quantity":2}]}`
	w := doRequest(t, env, http.MethodPost, "/webhook", payload, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var result reconcilerdomain.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.EventType != reconcilerdomain.EventOrderProcessed {
		t.Fatalf("expected order_processed, got %s", result.EventType)
	}
	if result.OrderID != "8842615" {
		t.Fatalf("expected numeric id coerced to string, got %q", result.OrderID)
	}
	if len(env.reconciler.processed) != 1 {
		t.Fatalf("expected one order dispatched, got %d", len(env.reconciler.processed))
	}
}

func TestWebhookProcessesOrdersEnvelope(t *testing.T) {
	env := newTestServer(t)

	payload := `{"orders":[
		{"id":"1","type":"delivery","items":[{"id":"1","type":"item","name":"Tea","price":2,"quantity":1}]},
		{"id":"2","type":"pickup","items":[{"id":"1","type":"item","name":"Coffee","price":3,"quantity":1}]}
	]}`
	w := doRequest(t, env, http.MethodPost, "/webhook", payload, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(env.reconciler.processed) != 2 {
		t.Fatalf("expected both orders dispatched, got %d", len(env.reconciler.processed))
	}
}

func TestWebhookRejectsEmptyEnvelope(t *testing.T) {
	env := newTestServer(t)

	w := doRequest(t, env, http.MethodPost, "/webhook", `{"orders":[]}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWebhookRejectsOrderWithoutItems(t *testing.T) {
	env := newTestServer(t)

	payload := `{"id":"5","type":"delivery","items":[]}`
	w := doRequest(t, env, http.MethodPost, "/webhook", payload, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(env.reconciler.processed) != 0 {
		t.Fatal("expected nothing dispatched")
	}
}

func TestWebhookAllowsReservationWithoutItems(t *testing.T) {
	env := newTestServer(t)

	payload := `{"id":"6","type":"table_reservation"}`
	w := doRequest(t, env, http.MethodPost, "/webhook", payload, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestWebhookSignatureVerification(t *testing.T) {
	env := newTestServer(t)
	env.source.verify = true
	env.source.signature = "good"

	payload := `{"id":"7","type":"delivery","items":[{"id":"1","type":"item","name":"Tea","price":2,"quantity":1}]}`

	w := doRequest(t, env, http.MethodPost, "/webhook", payload, map[string]string{
		"X-Webhook-Signature": "bad",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", w.Code)
	}

	w = doRequest(t, env, http.MethodPost, "/webhook", payload, map[string]string{
		"X-Webhook-Signature": "good",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid signature, got %d", w.Code)
	}
}

func TestRetryEndpoint(t *testing.T) {
	env := newTestServer(t)

	w := doRequest(t, env, http.MethodPost, "/api/orders/123/retry", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	env.reconciler.retryErr = reconcilerdomain.ErrRetryExhausted
	w = doRequest(t, env, http.MethodPost, "/api/orders/123/retry", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for exhausted retries, got %d", w.Code)
	}

	env.reconciler.retryErr = reconcilerdomain.ErrOrderNotFound
	w = doRequest(t, env, http.MethodPost, "/api/orders/999/retry", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", w.Code)
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.ledger.records["42"] = &ledgerdomain.OrderRecord{
		OrderID: "42",
		Status:  ledgerdomain.StatusProcessed,
	}

	w := doRequest(t, env, http.MethodGet, "/api/orders/42", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doRequest(t, env, http.MethodGet, "/api/orders/404", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestLookupMappingEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.catalog.entries["Tea"] = &catalogdomain.CatalogEntry{
		SKU:            "10001",
		SourceItemName: "Tea",
		POSVariantID:   "variant_1",
	}

	w := doRequest(t, env, http.MethodPost, "/api/mapping/lookup", `{"name":"Tea"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var match catalogdomain.Match
	if err := json.Unmarshal(w.Body.Bytes(), &match); err != nil {
		t.Fatalf("decode match: %v", err)
	}
	if match.Type != catalogdomain.MatchExact {
		t.Fatalf("expected exact match, got %s", match.Type)
	}

	w = doRequest(t, env, http.MethodPost, "/api/mapping/lookup", `{"name":"Unknown"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unmapped name, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestServer(t)
	env.ledger.records["1"] = &ledgerdomain.OrderRecord{OrderID: "1", Status: ledgerdomain.StatusProcessed}
	env.ledger.records["2"] = &ledgerdomain.OrderRecord{OrderID: "2", Status: ledgerdomain.StatusFailed}

	w := doRequest(t, env, http.MethodGet, "/api/orders/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var stats ledgerdomain.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 2 || stats.Processed != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t)

	w := doRequest(t, env, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
