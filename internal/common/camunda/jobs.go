package camunda

import (
	"context"
	"time"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// RecordJobCompleted records the success metrics of one job.
func RecordJobCompleted(ctx context.Context, obs *observability.Observability, taskType string, startTime time.Time) {
	elapsed := time.Since(startTime)
	metrics.WorkerJobsCompleted.WithLabelValues(taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
	obs.RecordJobProcessed(ctx, taskType, "success")
	obs.RecordJobDuration(ctx, taskType, elapsed, "success")
}

// FailJob records the failure metrics of one job and reports it to the broker
// through the error handler.
func FailJob(ctx context.Context, client worker.JobClient, job entities.Job, taskType string, startTime time.Time,
	obs *observability.Observability, handler *errors.ErrorHandler, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(taskType, ErrorCode(err)).Inc()
	obs.RecordJobProcessed(ctx, taskType, "failed")
	obs.RecordJobDuration(ctx, taskType, time.Since(startTime), "failed")
	handler.HandleJobError(ctx, client, job, err)
}

// ErrorCode is the metric label for err.
func ErrorCode(err error) string {
	if code := errors.CodeOf(err); code != "" {
		return string(code)
	}
	return "UNKNOWN_ERROR"
}
