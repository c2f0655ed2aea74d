// Package metrics declares the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookupsTotal counts cache reads by result (hit, miss, error).
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_cache_lookups_total",
			Help: "Total number of cache lookups by result.",
		},
		[]string{"result"},
	)

	// CacheErrorsTotal counts cache backend failures by operation.
	CacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_cache_errors_total",
			Help: "Total number of cache backend failures by operation.",
		},
		[]string{"op"},
	)

	// CacheStaleFillsTotal counts cache fills dropped because an invalidation
	// happened while the value was being read from the store.
	CacheStaleFillsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskflow_cache_stale_fills_total",
			Help: "Total number of cache fills skipped after a concurrent invalidation.",
		},
	)

	// JobsEnqueuedTotal counts jobs accepted by the dispatcher.
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_jobs_enqueued_total",
			Help: "Total number of jobs enqueued by kind.",
		},
		[]string{"kind"},
	)

	// JobEnqueueFailuresTotal counts jobs the dispatcher could not hand off.
	JobEnqueueFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_job_enqueue_failures_total",
			Help: "Total number of failed job enqueues by kind.",
		},
		[]string{"kind"},
	)

	// JobsProcessedTotal counts job attempts by kind and outcome.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_jobs_processed_total",
			Help: "Total number of job attempts by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// JobDurationSeconds observes how long a single handler invocation takes.
	JobDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskflow_job_duration_seconds",
			Help:    "Duration of job handler invocations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// RateLimitRejectionsTotal counts requests refused by the rate limiter.
	RateLimitRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskflow_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter.",
		},
	)

	// OverdueScansTotal counts scanner runs by result (ok, error).
	OverdueScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_overdue_scans_total",
			Help: "Total number of overdue scans by result.",
		},
		[]string{"result"},
	)

	// OverdueTasksFound records how many overdue tasks the last scan saw.
	OverdueTasksFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskflow_overdue_tasks_found",
			Help: "Number of overdue tasks found by the most recent scan.",
		},
	)
)
