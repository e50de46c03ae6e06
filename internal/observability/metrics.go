package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics holds the ledger counters exposed on /metrics.
type Metrics struct {
	Clicks            prometheus.Counter
	Conversions       prometheus.Counter
	PayoutTransitions *prometheus.CounterVec
	CreditDebits      *prometheus.CounterVec
	CreditGrants      *prometheus.CounterVec
	WebhookEvents     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Clicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domijob_affiliate_clicks_total",
			Help: "Referral link clicks recorded.",
		}),
		Conversions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "domijob_affiliate_conversions_total",
			Help: "Referral conversions credited.",
		}),
		PayoutTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domijob_payout_transitions_total",
			Help: "Payout status transitions applied.",
		}, []string{"status"}),
		CreditDebits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domijob_credit_debits_total",
			Help: "AI feature credit debits.",
		}, []string{"feature"}),
		CreditGrants: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domijob_credit_grants_total",
			Help: "Credits granted by type.",
		}, []string{"type"}),
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domijob_payment_webhook_events_total",
			Help: "Payment webhook events by outcome.",
		}, []string{"outcome"}),
	}
}

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "domijob_http_request_duration_seconds",
	Help:    "HTTP request latency by route and status.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "status"})

// GinMiddleware records request latency per route.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}

var Module = fx.Module("observability",
	fx.Provide(NewMetrics),
)
