package middleware

import (
	"github.com/caliphsdev/waterbalance/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

// httpRequestsTotal/httpRequestDuration replace the teacher's ad-hoc
// in-memory RequestMetrics counter with real Prometheus collectors,
// registered once at package init per the standard client_golang idiom.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waterbalance_http_requests_total",
		Help: "Total HTTP requests by method, path, and status code.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "waterbalance_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	balanceCalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "waterbalance_calculations_total",
		Help: "Total orchestrator calculations by mode and traffic-light status.",
	}, []string{"mode", "status"})

	balanceErrorPct = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "waterbalance_balance_error_pct",
		Help: "Most recent balance error percentage by period and mode.",
	}, []string{"period", "mode"})

	combinedDaysRemaining = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "waterbalance_combined_days_remaining",
		Help: "Most recent combined days-remaining runway projection by period.",
	}, []string{"period"})
)

// MetricsHandler exposes the Prometheus registry in its standard exposition
// format, for scraping rather than ad-hoc JSON polling.
func MetricsHandler() gin.HandlerFunc {
	handler := promhttp.Handler()
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordBalanceResult updates the calculation-count and balance-error
// gauges/counters after an orchestrator run; called by the balance
// controller rather than buried inside the core, which must stay
// Prometheus-free (spec.md's core has no ambient-observability dependency).
func RecordBalanceResult(result model.BalanceResult) {
	balanceCalculationsTotal.WithLabelValues(string(result.Mode), string(result.Status)).Inc()
	balanceErrorPct.WithLabelValues(result.Period.PeriodShort(), string(result.Mode)).Set(result.ErrorPct)
}

// RecordRunway updates the combined-days-remaining gauge after a runway
// projection.
func RecordRunway(period model.Period, days float64) {
	combinedDaysRemaining.WithLabelValues(period.PeriodShort()).Set(days)
}
