// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for ledger operations.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeFull     = "capacity_exceeded"
	OutcomeError    = "error"
)

var (
	// Core operations
	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Total number of core operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "core_operation_duration_seconds",
			Help:    "Duration of core operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Store
	StoreTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_transaction_duration_seconds",
			Help:    "Duration of store transactions and snapshots in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "kind"},
	)

	StoreTxErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_transaction_errors_total",
			Help: "Total number of store transactions that returned an error",
		},
		[]string{"backend", "kind"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)
)

// RecordOperation records one core operation.
func RecordOperation(operation, outcome string, duration time.Duration) {
	LedgerOperations.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStoreTx records one store transaction or snapshot.
func RecordStoreTx(backend, kind string, duration time.Duration, err error) {
	StoreTxDuration.WithLabelValues(backend, kind).Observe(duration.Seconds())
	if err != nil {
		StoreTxErrors.WithLabelValues(backend, kind).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
