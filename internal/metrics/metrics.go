// Package metrics provides Prometheus instrumentation for churnwatch.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnwatch",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "churnwatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// ReportsTotal counts report generations by outcome
	// (ok, invalid_input, data_unavailable, scoring_unavailable, error).
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnwatch",
			Name:      "reports_total",
			Help:      "Total weekly report generations by outcome.",
		},
		[]string{"outcome"},
	)

	// ReportDuration observes end-to-end report generation time.
	ReportDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "churnwatch",
		Name:      "report_duration_seconds",
		Help:      "Weekly report generation time in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// ReportCustomers observes how many customers each report covered.
	ReportCustomers = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "churnwatch",
		Name:      "report_customers",
		Help:      "Customers per generated weekly report.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	// PreviousWindowUnavailableTotal counts reports whose week-over-week
	// deltas fell back to zero.
	PreviousWindowUnavailableTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "churnwatch",
		Name:      "previous_window_unavailable_total",
		Help:      "Reports generated without previous-week comparison data.",
	})

	// NarrativeOutcomesTotal counts narrative attempts by final state and
	// reason (ok, disabled, no_activity, timeout, breaker_open, error, empty).
	NarrativeOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnwatch",
			Name:      "narrative_outcomes_total",
			Help:      "Executive summary generation outcomes by state and reason.",
		},
		[]string{"state", "reason"},
	)

	// ScorerRequestsTotal counts scoring calls by backend and result.
	ScorerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "churnwatch",
			Name:      "scorer_requests_total",
			Help:      "Churn scoring calls by backend and result.",
		},
		[]string{"backend", "result"},
	)

	// ScorerDuration observes scoring call latency by backend.
	ScorerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "churnwatch",
			Name:      "scorer_duration_seconds",
			Help:      "Churn scoring call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// ActiveWebSocketClients tracks connected dashboard clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "churnwatch",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "churnwatch", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "churnwatch", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "churnwatch", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "churnwatch", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "churnwatch", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ReportsTotal,
		ReportDuration,
		ReportCustomers,
		PreviousWindowUnavailableTotal,
		NarrativeOutcomesTotal,
		ScorerRequestsTotal,
		ScorerDuration,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and the goroutine
// count into gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath() // route pattern keeps cardinality bounded
		if path == "" {
			path = "unmatched"
		}
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(c.Request.Method, path))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, statusBucket(c.Writer.Status())).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
