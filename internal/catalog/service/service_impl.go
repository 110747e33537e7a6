package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/orderbridge/internal/catalog/domain"
	"github.com/smallbiznis/orderbridge/internal/clock"
	"github.com/smallbiznis/orderbridge/internal/config"
	"github.com/smallbiznis/orderbridge/internal/lock"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"github.com/smallbiznis/orderbridge/internal/pos"
	"github.com/smallbiznis/orderbridge/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Size tokens recognized in option groups and item names. The token is
// stored as-is so lookups stay faithful to the order source wording.
var sizeTokens = []string{"كبير", "وسط", "صغير", "large", "medium", "small"}

const autoCreateLockTTL = 10 * time.Second

type Params struct {
	fx.In

	Cfg     config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	POS     pos.Client
	Locker  *lock.Locker `optional:"true"`
	Metrics *metrics.Metrics
}

type Service struct {
	cfg     config.Config
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	pos     pos.Client
	locker  *lock.Locker
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		cfg:     p.Cfg,
		db:      p.DB,
		log:     p.Log.Named("catalog.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		pos:     p.POS,
		locker:  p.Locker,
		metrics: p.Metrics,
	}
}

func (s *Service) Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.Match, error) {
	name, size := s.normalize(req)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	entry, err := s.repo.FindBySourceName(ctx, s.db, name, size)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &domain.Match{Entry: entry, Type: domain.MatchExact}, nil
	}

	if req.DisableAutoCreate || !s.cfg.AutoCreateEnabled {
		return nil, domain.ErrNoMapping
	}
	return s.autoCreate(ctx, req, name, size)
}

func (s *Service) Lookup(ctx context.Context, name, size string) (*domain.Match, error) {
	name = collapseSpaces(name)
	size = strings.ToLower(strings.TrimSpace(size))
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	entry, err := s.repo.FindBySourceName(ctx, s.db, name, size)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &domain.Match{Entry: entry, Type: domain.MatchExact}, nil
	}

	entry, err = s.repo.FindAnyBySourceName(ctx, s.db, name)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &domain.Match{Entry: entry, Type: domain.MatchNameOnly}, nil
	}
	return nil, domain.ErrNoMapping
}

func (s *Service) List(ctx context.Context) ([]domain.CatalogEntry, error) {
	return s.repo.List(ctx, s.db)
}

// autoCreate makes the item in the POS first, then records the mapping.
// A lost race on the unique source name index converges on the winning
// row; the redundant POS item is logged and left for cleanup.
func (s *Service) autoCreate(ctx context.Context, req domain.ResolveRequest, name, size string) (*domain.Match, error) {
	handle := slug.Make(name + " " + size)

	if s.locker != nil {
		key := "catalog:autocreate:" + handle
		token, ok, err := s.locker.TryLock(ctx, key, autoCreateLockTTL)
		if err != nil {
			s.log.Warn("auto-create lock unavailable", zap.String("handle", handle), zap.Error(err))
		} else if ok {
			defer func() {
				if err := s.locker.Release(ctx, key, token); err != nil {
					s.log.Warn("auto-create lock release failed", zap.String("handle", handle), zap.Error(err))
				}
			}()
		}
	}

	// Another worker may have finished while we waited on the lock.
	entry, err := s.repo.FindBySourceName(ctx, s.db, name, size)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &domain.Match{Entry: entry, Type: domain.MatchExact}, nil
	}

	sku, err := s.nextSKU(ctx)
	if err != nil {
		return nil, err
	}

	displayName := name
	if size != "" {
		displayName = name + " " + size
	}
	price := req.Price
	for _, opt := range req.Options {
		if isSizeToken(opt.Name) {
			price += opt.Price
		}
	}

	item, err := s.pos.CreateItem(ctx, pos.CreateItemRequest{
		Name:        displayName,
		Description: s.cfg.AutoCreateCategory,
		Price:       price,
		SKU:         sku,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrItemCreationFailed, err)
	}

	now := s.clock.Now()
	entry = &domain.CatalogEntry{
		ID:             s.genID.Generate().Int64(),
		SKU:            sku,
		Handle:         handle,
		CanonicalName:  displayName,
		Category:       s.cfg.AutoCreateCategory,
		SourceItemName: name,
		Size:           size,
		Price:          price,
		POSItemID:      item.ID,
		POSVariantID:   item.Variants[0].VariantID,
		AutoCreated:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, s.db, entry); err != nil {
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindBySourceName(ctx, s.db, name, size)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				s.log.Warn("auto-create lost race, converging on existing mapping",
					zap.String("source_item_name", name),
					zap.String("size", size),
					zap.String("orphan_pos_item_id", item.ID),
				)
				return &domain.Match{Entry: existing, Type: domain.MatchExact}, nil
			}
			// The collision was on the SKU index. Fall back to an
			// opaque identifier and retry once.
			entry.SKU = newOpaqueSKU()
			if retryErr := s.repo.Create(ctx, s.db, entry); retryErr != nil {
				return nil, retryErr
			}
		} else {
			return nil, err
		}
	}

	s.metrics.RecordItemAutoCreated()
	s.log.Info("catalog item auto-created",
		zap.String("sku", entry.SKU),
		zap.String("source_item_name", name),
		zap.String("size", size),
		zap.String("pos_variant_id", entry.POSVariantID),
		zap.Float64("price", price),
	)
	return &domain.Match{Entry: entry, Type: domain.MatchAutoCreated}, nil
}

// nextSKU returns one past the highest numeric SKU in the catalog,
// starting from the configured seed on an empty catalog.
func (s *Service) nextSKU(ctx context.Context) (string, error) {
	skus, err := s.repo.ListSKUs(ctx, s.db)
	if err != nil {
		return "", err
	}
	max := s.cfg.SKUCounterSeed - 1
	for _, sku := range skus {
		n, err := strconv.ParseInt(strings.TrimSpace(sku), 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return strconv.FormatInt(max+1, 10), nil
}

func newOpaqueSKU() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// normalize extracts the size token from the options or the item name
// and returns the cleaned name alongside it.
func (s *Service) normalize(req domain.ResolveRequest) (name, size string) {
	name = collapseSpaces(req.Name)

	for _, opt := range req.Options {
		group := strings.ToLower(strings.TrimSpace(opt.GroupName))
		if strings.Contains(group, "size") || strings.Contains(group, "حجم") {
			size = strings.ToLower(collapseSpaces(opt.Name))
			break
		}
		if isSizeToken(opt.Name) {
			size = strings.ToLower(collapseSpaces(opt.Name))
			break
		}
	}

	if size == "" {
		fields := strings.Fields(name)
		for i, f := range fields {
			if isSizeToken(f) {
				size = strings.ToLower(f)
				name = collapseSpaces(strings.Join(append(fields[:i:i], fields[i+1:]...), " "))
				break
			}
		}
	}
	return name, size
}

func isSizeToken(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, t := range sizeTokens {
		if v == t {
			return true
		}
	}
	return false
}

func collapseSpaces(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
