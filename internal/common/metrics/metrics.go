package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	// FanoutBatches counts send() calls by outcome: committed, replayed, empty, rejected, failed, partial.
	FanoutBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_fanout_batches_total",
			Help: "Fan-out operations by outcome",
		},
		[]string{"outcome"},
	)

	FanoutRecordsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_records_created_total",
			Help: "Delivery records inserted by fan-out",
		},
	)

	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_fanout_duration_seconds",
			Help:    "Time spent committing a fan-out, all sub-batches included",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
	)

	RecordsMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_records_read_total",
			Help: "Delivery records transitioned from unread to read",
		},
	)

	RecordsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_records_deleted_total",
			Help: "Delivery records deleted, by operation",
		},
		[]string{"operation"},
	)

	ObserverFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_observer_failures_total",
			Help: "Post-commit observer errors (audit index, relays)",
		},
		[]string{"observer"},
	)
)

// Observe records one finished job.
func Observe(taskType string, seconds float64, errorCode string) {
	WorkerJobDuration.WithLabelValues(taskType).Observe(seconds)
	if errorCode == "" {
		WorkerJobsCompleted.WithLabelValues(taskType).Inc()
		return
	}
	WorkerJobsFailed.WithLabelValues(taskType, errorCode).Inc()
}
