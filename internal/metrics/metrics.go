package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droppy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "droppy_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "droppy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Dry resource metrics
	DryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droppy_dry_operations_total",
			Help: "Total number of dry resource operations by outcome",
		},
		[]string{"operation", "status"},
	)

	// Store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "droppy_store_operation_duration_seconds",
			Help:    "Key-value store operation latencies in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"store", "operation"},
	)

	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droppy_store_operations_total",
			Help: "Total number of key-value store operations by outcome",
		},
		[]string{"store", "operation", "status"},
	)

	StoreExpiredRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "droppy_store_expired_records_total",
			Help: "Total number of expired records swept from the store",
		},
	)

	// System metrics
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "droppy_build_info",
			Help: "Build information about droppy-api",
		},
		[]string{"version", "go_version"},
	)
)
