// internal/common/metrics/metrics.go
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

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Notifications persisted by Send, by type and initial status",
		},
		[]string{"type", "status"},
	)

	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_channel_deliveries_total",
			Help: "Per-channel delivery attempts by outcome (sent, failed, skipped)",
		},
		[]string{"channel", "result"},
	)

	SweepRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_sweep_records_total",
			Help: "Due records handled by the pending sweep, by outcome",
		},
		[]string{"outcome"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_sweep_duration_seconds",
			Help:    "Duration of a full pending-notification sweep",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)
