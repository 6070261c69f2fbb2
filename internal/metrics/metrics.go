// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec

	ClicksRecorded     prometheus.Counter
	PurchasesRecorded  prometheus.Counter
	PurchaseDuplicates prometheus.Counter
	Withdrawals        *prometheus.CounterVec
	// SettlementFailures counts ledger-settlement failures after a
	// successful transfer: money left the pool but the ledger did not
	// record it. Any non-zero value needs operator attention.
	SettlementFailures prometheus.Counter
	// PayoutFailures counts payout failures after a successful transfer;
	// the rail retries these independently.
	PayoutFailures  prometheus.Counter
	ReconcileDrifts prometheus.Counter
}

// New creates the service metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paylink_http_request_duration_seconds",
			Help:    "HTTP request duration by method, route, and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		ClicksRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "paylink_clicks_recorded_total",
			Help: "Click activities appended to the ledger.",
		}),
		PurchasesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "paylink_purchases_recorded_total",
			Help: "Purchase activities appended to the ledger.",
		}),
		PurchaseDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "paylink_purchase_duplicates_total",
			Help: "Purchase confirmations rejected by the external-ref unique index.",
		}),
		Withdrawals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paylink_withdrawals_total",
			Help: "Withdrawal attempts by outcome.",
		}, []string{"outcome"}),
		SettlementFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "paylink_settlement_failures_total",
			Help: "Ledger settlements that failed after a successful transfer.",
		}),
		PayoutFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "paylink_payout_failures_total",
			Help: "Bank payouts that failed after a successful transfer.",
		}),
		ReconcileDrifts: factory.NewCounter(prometheus.CounterOpts{
			Name: "paylink_reconcile_drifts_total",
			Help: "Reconciliations that found cached aggregates out of step with the activity history.",
		}),
	}
}

// Handler returns the /metrics scrape handler for this registry.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request durations per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
