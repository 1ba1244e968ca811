// cmd/notification-dispatcher/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notification-dispatch/internal/api"
	"notification-dispatch/internal/audit"
	"notification-dispatch/internal/channels"
	commonaws "notification-dispatch/internal/common/aws"
	"notification-dispatch/internal/common/camunda"
	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/database"
	commonhttp "notification-dispatch/internal/common/http"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/dispatch"
	"notification-dispatch/internal/store"
	"notification-dispatch/internal/sweep"

	ppn "notification-dispatch/internal/workers/notification/process-pending-notifications"
	sn "notification-dispatch/internal/workers/notification/send-notification"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification dispatcher...",
		zap.String("environment", cfg.App.Environment),
		zap.String("sweepTrigger", cfg.Sweep.Trigger),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := store.Migrate(ctx, pg.DB); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
		zapLog.Info("Schema migrated")
	}
	st := store.New(pg.DB)

	checks := map[string]api.Check{"postgres": pg.Ping}

	// --- Optional Redis claim locks ---
	var claimer sweep.Claimer
	if cfg.Database.Redis.Enabled() {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			rdb = database.NewRedis(cfg.Database.Redis)
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		claimer = sweep.NewRedisClaimer(rdb.Client, instanceID(), config.GetDuration(cfg.Sweep.ClaimTTL))
		checks["redis"] = rdb.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Optional Elasticsearch delivery audit ---
	var recorder dispatch.DeliveryRecorder
	if cfg.Database.Elasticsearch.Enabled() {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		recorder = audit.NewESRecorder(esClient.Client, esClient.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	senders, err := buildSenders(ctx, cfg.Notifications, log)
	if err != nil {
		zapLog.Fatal("channel setup failed", zap.Error(err))
	}

	fanout := dispatch.NewFanOut(dispatch.DefaultRegistry(senders, st), recorder, log, obs)
	engine := dispatch.NewEngine(dispatch.EngineDependencies{
		Users:         st,
		Store:         st,
		FanOut:        fanout,
		Logger:        log,
		Observability: obs,
	}, config.GetDuration(cfg.Notifications.FanOutTimeout))

	processor := sweep.NewProcessor(sweep.Dependencies{
		Store:         st,
		Users:         st,
		FanOut:        fanout,
		Claimer:       claimer,
		Logger:        log,
		Observability: obs,
	}, sweep.Config{
		BatchSize:     cfg.Sweep.BatchSize,
		Concurrency:   cfg.Sweep.Concurrency,
		RecordTimeout: config.GetDuration(cfg.Sweep.RecordTimeout),
		FailOrphaned:  cfg.Sweep.FailOrphaned,
	})

	var background sync.WaitGroup
	if cfg.Sweep.UsesTicker() {
		background.Add(1)
		go func() {
			defer background.Done()
			processor.Run(ctx, config.GetDuration(cfg.Sweep.Interval))
		}()
	}

	// --- Zeebe job workers ---
	var workers []*camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			RetryConfig:            camunda.DefaultRetryConfig,
		})
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		sendHandler, err := sn.NewHandler(sn.HandlerOptions{
			AppConfig:     cfg,
			Dispatcher:    engine,
			Logger:        log,
			Observability: obs,
		})
		if err != nil {
			zapLog.Fatal("failed to create send-notification handler", zap.Error(err))
		}
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), sn.TaskType,
			config.GetWorkerConfig(cfg, sn.TaskType), sendHandler, zapLog))

		if cfg.Sweep.UsesCamunda() {
			sweepHandler, err := ppn.NewHandler(ppn.HandlerOptions{
				AppConfig:     cfg,
				Sweeper:       processor,
				Logger:        log,
				Observability: obs,
			})
			if err != nil {
				zapLog.Fatal("failed to create process-pending-notifications handler", zap.Error(err))
			}
			workers = append(workers, camunda.StartWorker(zeebe.GetClient(), ppn.TaskType,
				config.GetWorkerConfig(cfg, ppn.TaskType), sweepHandler, zapLog))
		}
	}

	// --- API, Health & Metrics Server ---
	server := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewServer(api.Options{
			Sender:  engine,
			Sweeper: processor,
			Checks:  checks,
			Logger:  log,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	for _, w := range workers {
		w.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	background.Wait()

	zapLog.Info("Notification dispatcher stopped gracefully")
}

// buildSenders creates a transport for every enabled channel. Disabled
// channels stay nil and are left out of the registry.
func buildSenders(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (dispatch.Senders, error) {
	var s dispatch.Senders

	if cfg.Email.Enabled {
		client, err := commonaws.NewSESClient(ctx, cfg.Email.Region)
		if err != nil {
			return s, err
		}
		s.Email = channels.NewEmailSender(client, cfg.Email.FromEmail, cfg.Email.ConfigurationSet, log)
	}

	if cfg.SMS.Enabled {
		client, err := commonaws.NewSNSClient(ctx, cfg.SMS.Region)
		if err != nil {
			return s, err
		}
		s.SMS = channels.NewSMSSender(client, cfg.SMS.SenderID, cfg.SMS.SMSType, log)
	}

	if cfg.WhatsApp.Enabled {
		s.WhatsApp = channels.NewWhatsAppSender(
			commonhttp.NewClient(config.GetDuration(cfg.WhatsApp.Timeout)),
			cfg.WhatsApp.BaseURL,
			cfg.WhatsApp.PhoneNumberID,
			cfg.WhatsApp.AccessToken,
			log,
		)
	}

	if cfg.Push.Enabled {
		s.Push = channels.NewPushSender(channels.PushConfig{
			VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
			Subscriber:      cfg.Push.Subscriber,
			TTL:             cfg.Push.TTL,
			Urgency:         cfg.Push.Urgency,
			HTTPClient:      commonhttp.NewClient(config.GetDuration(cfg.Push.Timeout)).HTTPClient(),
		}, log)
	}

	return s, nil
}

// instanceID names this process as a claim owner.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + uuid.NewString()[:8]
}
