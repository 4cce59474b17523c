package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AggregationPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_aggregation_passes_total",
			Help: "Aggregation passes by outcome (complete, degraded, failed, discarded)",
		},
		[]string{"outcome"},
	)

	AggregationPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_aggregation_pass_duration_seconds",
			Help:    "Duration of a full aggregation pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_source_failures_total",
			Help: "Source adapter failures by phase (parallel, sequential)",
		},
		[]string{"source", "phase"},
	)

	CreditCharges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_credit_charges_total",
			Help: "Candidate status charge attempts by outcome",
		},
		[]string{"outcome"},
	)

	UnreadNotifications = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_unread",
			Help: "Unread notifications in the current aggregate",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)
)
