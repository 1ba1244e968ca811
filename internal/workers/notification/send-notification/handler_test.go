package sendnotification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/dispatch"
	"notification-dispatch/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mock Implementations
// ==========================

type MockDispatcher struct {
	DispatchFunc func(ctx context.Context, req dispatch.SendRequest) (*models.Notification, error)
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req dispatch.SendRequest) (*models.Notification, error) {
	return m.DispatchFunc(ctx, req)
}

// ==========================
// Test Helper Functions
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "order-fulfilment",
		ElementId:          "Activity_SendNotification",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func validVariables() map[string]interface{} {
	return map[string]interface{}{
		"userId":        "u-1",
		"title":         "Order shipped",
		"message":       "Your order is on the way",
		"type":          "order-update",
		"channels":      []string{"email", "sms"},
		"referenceId":   "ord-9",
		"referenceType": "order",
		"orderTotal":    42.5,
	}
}

func createTestHandler(t *testing.T, d Dispatcher) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Dispatcher:   d,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Handler Creation Tests
// ==========================

func TestHandler_NewHandler(t *testing.T) {
	d := &MockDispatcher{}

	t.Run("defaults", func(t *testing.T) {
		h, err := NewHandler(HandlerOptions{Dispatcher: d, Logger: logger.NewNoOpLogger()})
		require.NoError(t, err)
		assert.Equal(t, TaskType, h.GetTaskType())
		assert.True(t, h.IsEnabled())
		assert.Equal(t, 30*time.Second, h.GetConfig().Timeout)
	})

	t.Run("app config overrides", func(t *testing.T) {
		appCfg := &config.Config{Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, MaxJobsActive: 12, Timeout: 5000},
		}}
		h, err := NewHandler(HandlerOptions{AppConfig: appCfg, Dispatcher: d})
		require.NoError(t, err)
		assert.Equal(t, 12, h.GetConfig().MaxJobsActive)
		assert.Equal(t, 5*time.Second, h.GetConfig().Timeout)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{CustomConfig: &Config{MaxJobsActive: 1}, Dispatcher: d})
		assert.ErrorContains(t, err, "timeout must be positive")
	})

	t.Run("missing dispatcher", func(t *testing.T) {
		_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig()})
		assert.Error(t, err)
	})
}

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockDispatcher{})

	t.Run("valid variables with extra process data", func(t *testing.T) {
		input, err := h.parseInput(createMockJob(1, validVariables()))
		require.NoError(t, err)
		assert.Equal(t, "u-1", input.UserID)
		assert.Equal(t, []string{"email", "sms"}, input.Channels)
		assert.Equal(t, "ord-9", input.ReferenceID)
	})

	tests := []struct {
		name   string
		mutate func(v map[string]interface{})
	}{
		{"missing userId", func(v map[string]interface{}) { delete(v, "userId") }},
		{"missing channels", func(v map[string]interface{}) { delete(v, "channels") }},
		{"channels wrong type", func(v map[string]interface{}) { v["channels"] = "email" }},
		{"empty message", func(v map[string]interface{}) { v["message"] = "" }},
		{"malformed schedule", func(v map[string]interface{}) { v["scheduledAt"] = "next week" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := validVariables()
			tt.mutate(vars)

			_, err := h.parseInput(createMockJob(2, vars))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
		})
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Immediate(t *testing.T) {
	var got dispatch.SendRequest
	h := createTestHandler(t, &MockDispatcher{
		DispatchFunc: func(_ context.Context, req dispatch.SendRequest) (*models.Notification, error) {
			got = req
			return &models.Notification{ID: "notif_1_abcdef123", Status: models.StatusSent}, nil
		},
	})

	out, err := h.Execute(context.Background(), &Input{
		UserID:   "u-1",
		Title:    "t",
		Message:  "m",
		Type:     "promotion",
		Channels: []string{"push"},
	})
	require.NoError(t, err)

	assert.Equal(t, "notif_1_abcdef123", out.NotificationID)
	assert.Equal(t, "SENT", out.Status)
	assert.Empty(t, out.ScheduledAt)
	assert.Equal(t, models.TypePromotion, got.Type)
	assert.Nil(t, got.ScheduledAt)
}

func TestHandler_Execute_Scheduled(t *testing.T) {
	at := time.Date(2031, 5, 1, 9, 0, 0, 0, time.UTC)
	h := createTestHandler(t, &MockDispatcher{
		DispatchFunc: func(_ context.Context, req dispatch.SendRequest) (*models.Notification, error) {
			require.NotNil(t, req.ScheduledAt)
			assert.True(t, req.ScheduledAt.Equal(at))
			return &models.Notification{ID: "notif_2_abcdef123", Status: models.StatusPending, ScheduledAt: &at}, nil
		},
	})

	out, err := h.Execute(context.Background(), &Input{
		UserID:      "u-1",
		Title:       "t",
		Message:     "m",
		Type:        "rental-expiry",
		Channels:    []string{"email"},
		ScheduledAt: "2031-05-01T09:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", out.Status)
	assert.Equal(t, "2031-05-01T09:00:00Z", out.ScheduledAt)
}

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("bad schedule never reaches the engine", func(t *testing.T) {
		h := createTestHandler(t, &MockDispatcher{
			DispatchFunc: func(context.Context, dispatch.SendRequest) (*models.Notification, error) {
				t.Fatal("dispatcher must not be called")
				return nil, nil
			},
		})
		_, err := h.Execute(context.Background(), &Input{UserID: "u", ScheduledAt: "yesterday"})
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidArgument))
	})

	t.Run("engine errors pass through", func(t *testing.T) {
		cases := []error{
			errors.NewUserNotFoundError("u-404"),
			errors.NewDatabaseInsertFailedError(stderrors.New("conn reset")),
		}
		for _, want := range cases {
			h := createTestHandler(t, &MockDispatcher{
				DispatchFunc: func(context.Context, dispatch.SendRequest) (*models.Notification, error) {
					return nil, want
				},
			})
			_, err := h.Execute(context.Background(), &Input{UserID: "u", Title: "t", Message: "m", Type: "system", Channels: []string{"sms"}})
			assert.Equal(t, errors.CodeOf(want), errors.CodeOf(err))
		}
	})
}
