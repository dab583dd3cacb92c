// Package metrics holds the Prometheus collectors for queryexec. Collectors
// are registered on the default registry at init and exposed by the HTTP API
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryexec_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queryexec_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	// ExecutorRuns counts statements sent to the data engine.
	ExecutorRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryexec_executor_runs_total",
			Help: "Total number of statements executed against the dataset",
		},
		[]string{"outcome"},
	)
	// ExecutorDuration is the time spent executing and materializing a statement.
	ExecutorDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queryexec_executor_duration_seconds",
			Help:    "Statement execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	// CacheLookups counts result cache lookups by outcome (hit, miss, shared).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryexec_cache_lookups_total",
			Help: "Total number of result cache lookups",
		},
		[]string{"result"},
	)
	// AsyncSubmissions counts async submissions by outcome (accepted, saturated).
	AsyncSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryexec_async_submissions_total",
			Help: "Total number of async execution submissions",
		},
		[]string{"outcome"},
	)
	// AsyncFinished counts async executions reaching a terminal status.
	AsyncFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queryexec_async_finished_total",
			Help: "Total number of async executions by terminal status",
		},
		[]string{"status"},
	)
	// PoolOutstanding is the number of async jobs queued or running.
	PoolOutstanding = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queryexec_pool_outstanding_jobs",
			Help: "Async jobs admitted to the worker pool and not yet finished",
		},
	)
)
