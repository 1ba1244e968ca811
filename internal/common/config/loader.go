// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and lets environment variables override any key (app.name -> APP_NAME).
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up directories looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills provider credentials from their conventional env names.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Notifications.WhatsApp.AccessToken, "WHATSAPP_ACCESS_TOKEN")
	setIfEmpty(&cfg.Notifications.Push.VAPIDPublicKey, "VAPID_PUBLIC_KEY")
	setIfEmpty(&cfg.Notifications.Push.VAPIDPrivateKey, "VAPID_PRIVATE_KEY")

	if region := os.Getenv("AWS_REGION"); region != "" {
		if cfg.Notifications.Email.Region == "" {
			cfg.Notifications.Email.Region = region
		}
		if cfg.Notifications.SMS.Region == "" {
			cfg.Notifications.SMS.Region = region
		}
	}
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "notification-dispatch"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.Index == "" {
		cfg.Database.Elasticsearch.Index = "notification-deliveries"
	}

	n := &cfg.Notifications
	if n.FanOutTimeout == 0 {
		n.FanOutTimeout = 30000
	}
	if n.SMS.SMSType == "" {
		n.SMS.SMSType = "Transactional"
	}
	if n.WhatsApp.BaseURL == "" {
		n.WhatsApp.BaseURL = "https://graph.facebook.com/v19.0"
	}
	if n.WhatsApp.Timeout == 0 {
		n.WhatsApp.Timeout = 10000
	}
	if n.Push.TTL == 0 {
		n.Push.TTL = 86400
	}
	if n.Push.Urgency == "" {
		n.Push.Urgency = "normal"
	}
	if n.Push.Timeout == 0 {
		n.Push.Timeout = 10000
	}

	s := &cfg.Sweep
	if s.Trigger == "" {
		s.Trigger = TriggerTicker
	}
	if s.Interval == 0 {
		s.Interval = 60000
	}
	if s.BatchSize == 0 {
		s.BatchSize = 100
	}
	if s.Concurrency == 0 {
		s.Concurrency = 4
	}
	if s.RecordTimeout == 0 {
		s.RecordTimeout = 60000
	}
	if s.ClaimTTL == 0 {
		s.ClaimTTL = 5 * 60000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Workers == nil {
		cfg.Workers = map[string]WorkerConfig{}
	}
	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	switch cfg.Sweep.Trigger {
	case TriggerTicker, TriggerCamunda, TriggerBoth:
	default:
		return fmt.Errorf("sweep.trigger must be one of ticker, camunda, both")
	}
	if cfg.Sweep.UsesCamunda() && (!cfg.Camunda.Enabled || cfg.Camunda.BrokerAddress == "") {
		return fmt.Errorf("sweep.trigger %q requires camunda.enabled and camunda.broker_address", cfg.Sweep.Trigger)
	}
	if cfg.Sweep.Concurrency < 1 {
		return fmt.Errorf("sweep.concurrency must be positive")
	}

	n := cfg.Notifications
	if n.Email.Enabled && (n.Email.FromEmail == "" || n.Email.Region == "") {
		return fmt.Errorf("notifications.email requires from_email and region")
	}
	if n.SMS.Enabled && n.SMS.Region == "" {
		return fmt.Errorf("notifications.sms.region is required")
	}
	if n.WhatsApp.Enabled && (n.WhatsApp.PhoneNumberID == "" || n.WhatsApp.AccessToken == "") {
		return fmt.Errorf("notifications.whatsapp requires phone_number_id and access_token")
	}
	if n.Push.Enabled && (n.Push.VAPIDPublicKey == "" || n.Push.VAPIDPrivateKey == "" || n.Push.Subscriber == "") {
		return fmt.Errorf("notifications.push requires vapid keys and subscriber")
	}

	return nil
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}
