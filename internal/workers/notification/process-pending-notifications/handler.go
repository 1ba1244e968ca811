package processpending

import (
	"context"
	"fmt"
	"time"

	"notification-dispatch/internal/common/camunda"
	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/sweep"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "process-pending-notifications"

type Sweeper interface {
	ProcessPendingNotifications(ctx context.Context) (sweep.SweepResult, error)
}

type Handler struct {
	config       *Config
	logger       logger.Logger
	sweeper      Sweeper
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Sweeper       Sweeper
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Sweeper == nil {
		return nil, fmt.Errorf("%s requires a sweeper", TaskType)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
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
		sweeper:      opts.Sweeper,
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

	h.logger.Info("Processing pending notifications job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	output, err := h.Execute(ctx)
	if err != nil {
		camunda.FailJob(ctx, client, job, TaskType, startTime, h.obs, h.errorHandler, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	camunda.RecordJobCompleted(ctx, h.obs, TaskType, startTime)
}

// Execute runs one sweep. Per-record failures are counted in the output;
// only a sweep that could not read the store returns an error.
func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	result, err := h.sweeper.ProcessPendingNotifications(ctx)
	if err != nil {
		h.logger.Warn("sweep ended early", map[string]interface{}{
			"error":   err,
			"scanned": result.Scanned,
		})
		return nil, err
	}
	return outputFrom(result), nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(output.toVariables())
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

	h.logger.Info("Sweep job completed", map[string]interface{}{
		"jobKey":  job.GetKey(),
		"scanned": output.Scanned,
		"sent":    output.Sent,
		"failed":  output.Failed,
	})
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
