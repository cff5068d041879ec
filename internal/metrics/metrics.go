// Package metrics exposes Prometheus instrumentation for the gateway.
// All metrics are package-level and registered at init; callers record
// through the exported functions and mount Handler on /metrics.
package metrics

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoutgw_requests_total",
			Help: "Gateway requests by surface and terminal audit status",
		},
		[]string{"surface", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoutgw_request_duration_seconds",
			Help:    "End-to-end gateway request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60},
		},
		[]string{"surface"},
	)

	validationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoutgw_validation_rejections_total",
			Help: "Queries rejected by the validation pipeline, by violation kind",
		},
		[]string{"kind"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoutgw_rate_limited_total",
			Help: "Requests refused because the client exceeded its window quota",
		},
	)

	warehouseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoutgw_warehouse_query_duration_seconds",
			Help:    "Warehouse dispatch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)

	warehouseRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoutgw_warehouse_rows_returned",
			Help:    "Rows returned per warehouse query after truncation",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		},
		[]string{"backend"},
	)

	auditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoutgw_audit_write_failures_total",
			Help: "Audit trail writes that failed and escalated to the caller",
		},
	)

	auditRecordsArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoutgw_audit_records_archived_total",
			Help: "Audit records exported to the archive sink by the retention sweeper",
		},
	)

	auditRecordsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoutgw_audit_records_deleted_total",
			Help: "Audit records deleted by the retention sweeper",
		},
	)

	auditPoolOpenConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoutgw_audit_db_open_connections",
			Help: "Open connections in the audit database pool",
		},
	)

	auditPoolIdleConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoutgw_audit_db_idle_connections",
			Help: "Idle connections in the audit database pool",
		},
	)

	auditPoolInUseConns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoutgw_audit_db_in_use_connections",
			Help: "Audit database connections currently in use",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoutgw_http_requests_total",
			Help: "HTTP requests by method, route pattern, and status class",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoutgw_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// RecordRequest records one gateway request reaching a terminal audit status.
func RecordRequest(surface, status string, duration time.Duration) {
	requestsTotal.WithLabelValues(surface, status).Inc()
	requestDuration.WithLabelValues(surface).Observe(duration.Seconds())
}

// RecordRejection records a validation rejection by violation kind.
func RecordRejection(kind string) {
	validationRejections.WithLabelValues(kind).Inc()
}

// RecordRateLimited records a request refused by the rate limiter.
func RecordRateLimited() {
	rateLimitedTotal.Inc()
}

// RecordWarehouseQuery records a completed warehouse dispatch.
func RecordWarehouseQuery(backend string, rows int, duration time.Duration) {
	warehouseQueryDuration.WithLabelValues(backend).Observe(duration.Seconds())
	warehouseRowsReturned.WithLabelValues(backend).Observe(float64(rows))
}

// RecordAuditWriteFailure records an audit write that failed.
func RecordAuditWriteFailure() {
	auditWriteFailures.Inc()
}

// RecordRetentionSweep records the outcome of one retention sweep.
func RecordRetentionSweep(archived, deleted int64) {
	auditRecordsArchived.Add(float64(archived))
	auditRecordsDeleted.Add(float64(deleted))
}

// RecordAuditPoolStats publishes audit database pool gauges.
func RecordAuditPoolStats(stats sql.DBStats) {
	auditPoolOpenConns.Set(float64(stats.OpenConnections))
	auditPoolIdleConns.Set(float64(stats.Idle))
	auditPoolInUseConns.Set(float64(stats.InUse))
}

// RecordHTTPRequest records an HTTP request. Status codes collapse to their
// class so PromQL error-rate queries stay cheap.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
