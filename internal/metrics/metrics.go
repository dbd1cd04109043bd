package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route pattern and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablegate_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	// QueryDuration is the latency of statements sent to the store.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablegate_query_duration_seconds",
			Help:    "Statement latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dialect", "kind"},
	)
	// SessionsOpen is the number of checked-out sessions by isolation level.
	SessionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tablegate_sessions_open",
			Help: "Sessions currently checked out of the pool",
		},
		[]string{"isolation"},
	)
	// CursorOperations counts cursor facade operations by outcome.
	CursorOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegate_cursor_operations_total",
			Help: "Total number of cursor operations",
		},
		[]string{"operation", "status"},
	)
	// LoginAttempts counts login attempts by outcome.
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegate_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"},
	)
	// SchemaCacheEvents counts allow-list cache hits, misses and purges.
	SchemaCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablegate_schema_cache_events_total",
			Help: "Schema allow-list cache events",
		},
		[]string{"event"},
	)
)

// Status is the label value for an operation outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
