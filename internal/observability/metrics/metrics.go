package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	ordersHandled *prometheus.CounterVec
	itemsCreated  prometheus.Counter
	retriesRun    prometheus.Counter
}

// New registers the instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		httpRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbridge_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderbridge_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ordersHandled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbridge_orders_handled_total",
			Help: "Webhook orders by terminal outcome.",
		}, []string{"outcome"}),
		itemsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orderbridge_catalog_items_auto_created_total",
			Help: "Catalog entries auto-created on mapping miss.",
		}),
		retriesRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "orderbridge_order_retries_total",
			Help: "Failed orders re-driven by the retry worker.",
		}),
	}
}

// RecordOrder increments the order outcome counter.
func (m *Metrics) RecordOrder(outcome string) {
	if m == nil {
		return
	}
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		outcome = "unknown"
	}
	m.ordersHandled.WithLabelValues(outcome).Inc()
}

// RecordItemAutoCreated increments the auto-created item counter.
func (m *Metrics) RecordItemAutoCreated() {
	if m == nil {
		return
	}
	m.itemsCreated.Inc()
}

// RecordRetry increments the retry counter.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.retriesRun.Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
