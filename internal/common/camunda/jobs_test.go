package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"notification-dispatch/internal/common/camunda/camundatest"
	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func durationCount(t *testing.T, reader sdkmetric.Reader, status string) uint64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var count uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "jobs.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("status")); ok && v.AsString() == status {
					count += dp.Count
				}
			}
		}
	}
	return count
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "USER_NOT_FOUND", ErrorCode(errors.NewUserNotFoundError("u")))
	assert.Equal(t, "UNKNOWN_ERROR", ErrorCode(stderrors.New("plain")))
}

func TestFailJob_RecordsDurationAndFailsJob(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	obs := observability.NewWithReader("test", reader)
	defer obs.Shutdown()

	client := camundatest.NewJobClient()
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 7, Type: "send-notification", Retries: 3}}
	handler := errors.NewErrorHandler(logger.NewTestLogger(t))

	FailJob(context.Background(), client, job, "send-notification", time.Now(), obs, handler,
		errors.NewQueryExecutionFailedError("insert", stderrors.New("timeout")))

	failed := client.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(7), failed[0].JobKey)
	assert.Equal(t, int32(2), failed[0].Retries)
	assert.Empty(t, client.Thrown())
	assert.Equal(t, uint64(1), durationCount(t, reader, "failed"))
}

func TestFailJob_BusinessErrorIsThrown(t *testing.T) {
	client := camundatest.NewJobClient()
	job := entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 8, Type: "send-notification", Retries: 3}}
	handler := errors.NewErrorHandler(logger.NewTestLogger(t))

	FailJob(context.Background(), client, job, "send-notification", time.Now(), observability.NewNoop(), handler,
		errors.NewUserNotFoundError("u-1"))

	assert.Empty(t, client.Failed())
	thrown := client.Thrown()
	require.Len(t, thrown, 1)
	assert.Equal(t, "USER_NOT_FOUND", thrown[0].ErrorCode)
}

func TestRecordJobCompleted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	obs := observability.NewWithReader("test", reader)
	defer obs.Shutdown()

	RecordJobCompleted(context.Background(), obs, "send-notification", time.Now())

	assert.Equal(t, uint64(1), durationCount(t, reader, "success"))
	assert.Equal(t, uint64(0), durationCount(t, reader, "failed"))
}
