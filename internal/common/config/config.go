// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Sweep         SweepConfig             `mapstructure:"sweep"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// ElasticsearchConfig is optional; an empty address list disables the delivery audit index.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

// RedisConfig is optional; an empty address disables sweep claim locks.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// WorkerConfig holds the settings applicable to every Zeebe job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Channel Providers ---

// NotificationConfig enumerates the recognized options of every channel provider.
type NotificationConfig struct {
	FanOutTimeout int            `mapstructure:"fanout_timeout"` // milliseconds
	Email         EmailConfig    `mapstructure:"email"`
	SMS           SMSConfig      `mapstructure:"sms"`
	WhatsApp      WhatsAppConfig `mapstructure:"whatsapp"`
	Push          PushConfig     `mapstructure:"push"`
}

// EmailConfig configures the SES mail channel.
type EmailConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Region           string `mapstructure:"region"`
	FromEmail        string `mapstructure:"from_email"`
	ConfigurationSet string `mapstructure:"configuration_set"`
}

// SMSConfig configures the SNS SMS channel.
type SMSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Region   string `mapstructure:"region"`
	SenderID string `mapstructure:"sender_id"`
	SMSType  string `mapstructure:"sms_type"` // Transactional or Promotional
}

// WhatsAppConfig configures the chat-app gateway (WhatsApp Cloud API compatible).
type WhatsAppConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BaseURL       string `mapstructure:"base_url"`
	PhoneNumberID string `mapstructure:"phone_number_id"`
	AccessToken   string `mapstructure:"access_token"`
	Timeout       int    `mapstructure:"timeout"` // milliseconds
}

// PushConfig configures Web Push (VAPID).
type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"`
	TTL             int    `mapstructure:"ttl"` // seconds
	Urgency         string `mapstructure:"urgency"`
	Timeout         int    `mapstructure:"timeout"` // milliseconds
}

// --- Sweep ---

const (
	TriggerTicker  = "ticker"
	TriggerCamunda = "camunda"
	TriggerBoth    = "both"
)

// SweepConfig controls the pending-notification sweep.
type SweepConfig struct {
	Trigger       string `mapstructure:"trigger"`
	Interval      int    `mapstructure:"interval"` // milliseconds
	BatchSize     int    `mapstructure:"batch_size"`
	Concurrency   int    `mapstructure:"concurrency"`
	RecordTimeout int    `mapstructure:"record_timeout"` // milliseconds
	ClaimTTL      int    `mapstructure:"claim_ttl"`      // milliseconds
	FailOrphaned  bool   `mapstructure:"fail_orphaned"`
}

func (s SweepConfig) UsesTicker() bool {
	return s.Trigger == TriggerTicker || s.Trigger == TriggerBoth
}

func (s SweepConfig) UsesCamunda() bool {
	return s.Trigger == TriggerCamunda || s.Trigger == TriggerBoth
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
