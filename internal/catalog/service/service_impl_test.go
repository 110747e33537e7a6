package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderbridge/internal/catalog/domain"
	"github.com/smallbiznis/orderbridge/internal/catalog/repository"
	"github.com/smallbiznis/orderbridge/internal/catalog/service"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/pos"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakePOS struct {
	mu          sync.Mutex
	createCalls []pos.CreateItemRequest
	createErr   error
	onCreate    func(req pos.CreateItemRequest)
	nextItemID  int
}

func (f *fakePOS) CreateItem(ctx context.Context, req pos.CreateItemRequest) (*pos.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.onCreate != nil {
		f.onCreate(req)
	}
	f.createCalls = append(f.createCalls, req)
	f.nextItemID++
	return &pos.Item{
		ID:       fmt.Sprintf("item_%d", f.nextItemID),
		ItemName: req.Name,
		Variants: []pos.Variant{{
			VariantID:    fmt.Sprintf("variant_%d", f.nextItemID),
			SKU:          req.SKU,
			DefaultPrice: req.Price,
		}},
	}, nil
}

func (f *fakePOS) FindItemBySKU(ctx context.Context, sku string) (*pos.Item, error) {
	return nil, nil
}

func (f *fakePOS) CreateReceipt(ctx context.Context, req pos.CreateReceiptRequest) (*pos.Receipt, error) {
	return nil, errors.New("not implemented")
}

func (f *fakePOS) GetReceiptByID(ctx context.Context, id string) (*pos.Receipt, error) {
	return nil, nil
}

func (f *fakePOS) FindOrCreateCustomer(ctx context.Context, c pos.Customer) (*pos.Customer, error) {
	return &c, nil
}

func (f *fakePOS) CreateDiscount(ctx context.Context, d pos.Discount) (*pos.Discount, error) {
	return &d, nil
}

func (f *fakePOS) UpdateDiscount(ctx context.Context, d pos.Discount) (*pos.Discount, error) {
	return &d, nil
}

func (f *fakePOS) ListTenderTypes(ctx context.Context) ([]pos.TenderType, error) {
	return nil, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE catalog_entries (
			id BIGINT PRIMARY KEY,
			sku TEXT NOT NULL,
			handle TEXT NOT NULL,
			canonical_name TEXT NOT NULL,
			category TEXT,
			source_item_name TEXT NOT NULL,
			size TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			pos_item_id TEXT,
			pos_variant_id TEXT,
			auto_created BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_catalog_sku ON catalog_entries(sku)`,
		`CREATE UNIQUE INDEX ux_catalog_source_name_size ON catalog_entries(source_item_name, size)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, posClient pos.Client, cfg config.Config) domain.Service {
	t.Helper()

	node, err := snowflake.NewNode(20)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return service.New(service.Params{
		Cfg:   cfg,
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		POS:   posClient,
	})
}

func testConfig() config.Config {
	return config.Config{
		AutoCreateEnabled:  true,
		AutoCreateCategory: "مشروبات",
		SKUCounterSeed:     10001,
	}
}

func seedEntry(t *testing.T, db *gorm.DB, entry domain.CatalogEntry) {
	t.Helper()

	if entry.ID == 0 {
		entry.ID = time.Now().UnixNano()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
		entry.UpdatedAt = now
	}
	if err := repository.Provide().Create(context.Background(), db, &entry); err != nil {
		t.Fatalf("seed entry: %v", err)
	}
}

func TestResolveExactMatchSkipsCreation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	posClient := &fakePOS{}
	svc := newTestService(t, db, posClient, testConfig())

	seedEntry(t, db, domain.CatalogEntry{
		SKU:            "10001",
		Handle:         "tea-كبير",
		CanonicalName:  "Tea كبير",
		SourceItemName: "Tea",
		Size:           "كبير",
		Price:          3.5,
		POSItemID:      "item_seed",
		POSVariantID:   "variant_seed",
	})

	match, err := svc.Resolve(ctx, domain.ResolveRequest{Name: "Tea كبير", Price: 3.5})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if match.Type != domain.MatchExact {
		t.Fatalf("expected exact match, got %s", match.Type)
	}
	if match.Entry.POSVariantID != "variant_seed" {
		t.Fatalf("expected seeded variant, got %s", match.Entry.POSVariantID)
	}
	if len(posClient.createCalls) != 0 {
		t.Fatalf("expected no POS item creation, got %d", len(posClient.createCalls))
	}
}

func TestResolveAutoCreatesWithSizeFromName(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	posClient := &fakePOS{}
	svc := newTestService(t, db, posClient, testConfig())

	match, err := svc.Resolve(ctx, domain.ResolveRequest{Name: "Tea كبير", Price: 4})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if match.Type != domain.MatchAutoCreated {
		t.Fatalf("expected auto-created match, got %s", match.Type)
	}
	if match.Entry.SourceItemName != "Tea" {
		t.Fatalf("expected cleaned name Tea, got %q", match.Entry.SourceItemName)
	}
	if match.Entry.Size != "كبير" {
		t.Fatalf("expected size كبير, got %q", match.Entry.Size)
	}
	if match.Entry.SKU != "10001" {
		t.Fatalf("expected first SKU 10001, got %s", match.Entry.SKU)
	}
	if len(posClient.createCalls) != 1 {
		t.Fatalf("expected one POS item creation, got %d", len(posClient.createCalls))
	}
	if posClient.createCalls[0].Name != "Tea كبير" {
		t.Fatalf("expected POS display name with size, got %q", posClient.createCalls[0].Name)
	}
	if posClient.createCalls[0].Price != 4 {
		t.Fatalf("expected price 4, got %v", posClient.createCalls[0].Price)
	}
}

func TestResolveAutoCreatesWithSizeFromOptions(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	posClient := &fakePOS{}
	svc := newTestService(t, db, posClient, testConfig())

	match, err := svc.Resolve(ctx, domain.ResolveRequest{
		Name:  "Latte",
		Price: 5,
		Options: []domain.Option{
			{Name: "Large", GroupName: "Size", Price: 1.5},
		},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if match.Entry.Size != "large" {
		t.Fatalf("expected size large, got %q", match.Entry.Size)
	}
	if match.Entry.Price != 6.5 {
		t.Fatalf("expected price with size surcharge 6.5, got %v", match.Entry.Price)
	}
}

func TestResolveNoMappingWhenAutoCreateDisabled(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	posClient := &fakePOS{}
	cfg := testConfig()
	cfg.AutoCreateEnabled = false
	svc := newTestService(t, db, posClient, cfg)

	_, err := svc.Resolve(ctx, domain.ResolveRequest{Name: "Unknown Drink", Price: 2})
	if !errors.Is(err, domain.ErrNoMapping) {
		t.Fatalf("expected ErrNoMapping, got %v", err)
	}
	if len(posClient.createCalls) != 0 {
		t.Fatalf("expected no POS item creation, got %d", len(posClient.createCalls))
	}
}

func TestResolveNoMappingWhenDisabledPerRequest(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	posClient := &fakePOS{}
	svc := newTestService(t, db, posClient, testConfig())

	_, err := svc.Resolve(ctx, domain.ResolveRequest{
		Name:              "Unknown Drink",
		Price:             2,
		DisableAutoCreate: true,
	})
	if !errors.Is(err, domain.ErrNoMapping) {
		t.Fatalf("expected ErrNoMapping, got %v", err)
	}
}

func TestNextSKUIncrementsPastMax(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	posClient := &fakePOS{}
	svc := newTestService(t, db, posClient, testConfig())

	seedEntry(t, db, domain.CatalogEntry{
		ID:             1,
		SKU:            "10007",
		Handle:         "coffee",
		CanonicalName:  "Coffee",
		SourceItemName: "Coffee",
		POSVariantID:   "variant_a",
	})
	seedEntry(t, db, domain.CatalogEntry{
		ID:             2,
		SKU:            "01J3ZK7W9GQ8",
		Handle:         "special",
		CanonicalName:  "Special",
		SourceItemName: "Special",
		POSVariantID:   "variant_b",
	})

	match, err := svc.Resolve(ctx, domain.ResolveRequest{Name: "Mocha", Price: 4})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if match.Entry.SKU != "10008" {
		t.Fatalf("expected SKU 10008 past the numeric max, got %s", match.Entry.SKU)
	}
}

func TestResolveItemCreationFailure(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	posClient := &fakePOS{createErr: errors.New("pos down")}
	svc := newTestService(t, db, posClient, testConfig())

	_, err := svc.Resolve(ctx, domain.ResolveRequest{Name: "Tea", Price: 3})
	if !errors.Is(err, domain.ErrItemCreationFailed) {
		t.Fatalf("expected ErrItemCreationFailed, got %v", err)
	}

	entries, listErr := svc.List(ctx)
	if listErr != nil {
		t.Fatalf("list: %v", listErr)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no catalog rows after POS failure, got %d", len(entries))
	}
}

func TestResolveConvergesOnLostRace(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	posClient := &fakePOS{}
	posClient.onCreate = func(req pos.CreateItemRequest) {
		// A competing worker wins the insert between the POS call and
		// our own write.
		now := time.Now().UTC()
		rival := domain.CatalogEntry{
			ID:             999,
			SKU:            "10001",
			Handle:         "tea",
			CanonicalName:  "Tea",
			SourceItemName: "Tea",
			Size:           "",
			Price:          3,
			POSItemID:      "item_rival",
			POSVariantID:   "variant_rival",
			AutoCreated:    true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := repository.Provide().Create(context.Background(), db, &rival); err != nil {
			t.Errorf("rival insert: %v", err)
		}
	}
	svc := newTestService(t, db, posClient, testConfig())

	match, err := svc.Resolve(ctx, domain.ResolveRequest{Name: "Tea", Price: 3})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if match.Type != domain.MatchExact {
		t.Fatalf("expected convergence on existing row, got %s", match.Type)
	}
	if match.Entry.POSVariantID != "variant_rival" {
		t.Fatalf("expected rival variant, got %s", match.Entry.POSVariantID)
	}

	entries, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single converged row, got %d", len(entries))
	}
}

func TestLookupNameOnlyFallback(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	posClient := &fakePOS{}
	svc := newTestService(t, db, posClient, testConfig())

	seedEntry(t, db, domain.CatalogEntry{
		SKU:            "10001",
		Handle:         "tea-كبير",
		CanonicalName:  "Tea كبير",
		SourceItemName: "Tea",
		Size:           "كبير",
		POSVariantID:   "variant_seed",
	})

	match, err := svc.Lookup(ctx, "Tea", "صغير")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if match.Type != domain.MatchNameOnly {
		t.Fatalf("expected name-only match, got %s", match.Type)
	}
	if len(posClient.createCalls) != 0 {
		t.Fatalf("lookup must never create items, got %d creations", len(posClient.createCalls))
	}

	if _, err := svc.Lookup(ctx, "Missing", ""); !errors.Is(err, domain.ErrNoMapping) {
		t.Fatalf("expected ErrNoMapping for unknown name, got %v", err)
	}
}
