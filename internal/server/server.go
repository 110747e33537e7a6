package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	catalogdomain "github.com/smallbiznis/orderbridge/internal/catalog/domain"
	"github.com/smallbiznis/orderbridge/internal/config"
	ledgerdomain "github.com/smallbiznis/orderbridge/internal/ledger/domain"
	"github.com/smallbiznis/orderbridge/internal/observability"
	"github.com/smallbiznis/orderbridge/internal/observability/logger"
	"github.com/smallbiznis/orderbridge/internal/observability/metrics"
	"github.com/smallbiznis/orderbridge/internal/ordersource"
	promodomain "github.com/smallbiznis/orderbridge/internal/promo/domain"
	reconcilerdomain "github.com/smallbiznis/orderbridge/internal/reconciler/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, m *metrics.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(metrics.GinMiddleware(m))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, m *metrics.Metrics) *gin.Engine {
	return NewEngine(obsCfg, m)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	ReconcilerSvc reconcilerdomain.Service
	LedgerSvc     ledgerdomain.Service
	CatalogSvc    catalogdomain.Service
	PromoSvc      promodomain.Service
	Source        ordersource.Client
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	reconcilerSvc reconcilerdomain.Service
	ledgerSvc     ledgerdomain.Service
	catalogSvc    catalogdomain.Service
	promoSvc      promodomain.Service
	source        ordersource.Client
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		reconcilerSvc: p.ReconcilerSvc,
		ledgerSvc:     p.LedgerSvc,
		catalogSvc:    p.CatalogSvc,
		promoSvc:      p.PromoSvc,
		source:        p.Source,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhook", s.HandleWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/orders", s.ListOrders)
	api.GET("/orders/failed", s.ListFailedOrders)
	api.GET("/orders/stats", s.OrderStats)
	api.GET("/orders/:orderID", s.GetOrder)
	api.POST("/orders/:orderID/retry", s.RetryOrder)

	api.POST("/mapping/lookup", s.LookupMapping)
	api.GET("/products", s.ListProducts)
	api.GET("/promotions", s.ListPromotions)
}
