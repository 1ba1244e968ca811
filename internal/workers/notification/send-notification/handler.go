package sendnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notification-dispatch/internal/common/camunda"
	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/dispatch"
	"notification-dispatch/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "send-notification"

// Dispatcher is the engine entry point this worker drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.SendRequest) (*models.Notification, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	dispatcher   Dispatcher
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Dispatcher    Dispatcher
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("%s requires a dispatcher", TaskType)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"taskType": TaskType})

	obs := opts.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}

	return &Handler{
		config:       workerConfig,
		logger:       loggerInstance,
		dispatcher:   opts.Dispatcher,
		obs:          obs,
		errorHandler: errors.NewErrorHandler(loggerInstance),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing send notification job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err, startTime)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err, startTime)
		return
	}

	h.completeJob(ctx, client, job, output)
	camunda.RecordJobCompleted(ctx, h.obs, TaskType, startTime)
}

// Execute creates the notification; immediate ones are delivered before it returns.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := input.toRequest()
	if err != nil {
		return nil, err
	}

	n, err := h.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &Output{
		NotificationID: n.ID,
		Status:         string(n.Status),
	}
	if n.Status == models.StatusPending && n.ScheduledAt != nil {
		out.ScheduledAt = n.ScheduledAt.Format(time.RFC3339)
	}
	return out, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidArgumentError("failed to parse job variables: " + err.Error())
	}

	result := dispatch.SendRequestSchema.ValidateInput(variables)
	if !result.Valid {
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("validation errors: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.GetVariables()), &input); err != nil {
		return nil, errors.NewInvalidArgumentError("failed to decode job variables: " + err.Error())
	}
	return &input, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"notificationId":     output.NotificationID,
		"notificationStatus": output.Status,
	}
	if output.ScheduledAt != "" {
		variables["notificationScheduledAt"] = output.ScheduledAt
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("Send notification job completed", map[string]interface{}{
		"jobKey":         job.GetKey(),
		"notificationId": output.NotificationID,
		"status":         output.Status,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, startTime time.Time) {
	camunda.FailJob(ctx, client, job, TaskType, startTime, h.obs, h.errorHandler, err)
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func createConfigFromAppConfig(appConfig *config.Config, customConfig *Config) *Config {
	if customConfig != nil {
		return customConfig
	}

	cfg := DefaultConfig()
	if appConfig != nil {
		if workerCfg, exists := appConfig.Workers[TaskType]; exists {
			cfg.Enabled = workerCfg.Enabled
			if workerCfg.MaxJobsActive > 0 {
				cfg.MaxJobsActive = workerCfg.MaxJobsActive
			}
			if workerCfg.Timeout > 0 {
				cfg.Timeout = config.GetDuration(workerCfg.Timeout)
			}
		}
	}
	return cfg
}
