package config

import (
	"github.com/vietddude/healer/internal/core/domain"
	redisclient "github.com/vietddude/healer/internal/infra/redis"
	"github.com/vietddude/healer/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig        `yaml:"server"`
	Logging     LoggingConfig       `yaml:"logging"`
	Queue       QueueConfig         `yaml:"queue"`
	Redis       redisclient.Config  `yaml:"redis"`
	Database    postgres.Config     `yaml:"database"`
	Credentials []domain.Credential `yaml:"credentials"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// QueueConfig holds retry queue settings. Durations are whole seconds to match
// the environment-style knobs they are usually injected from.
type QueueConfig struct {
	PollIntervalSeconds     int  `yaml:"poll_interval_seconds"`
	MaxRetries              int  `yaml:"max_retries"`
	OverflowThreshold       int  `yaml:"overflow_threshold"`
	DeadAlertThreshold      int  `yaml:"dead_alert_threshold"`
	DeadAlertWindowSeconds  int  `yaml:"dead_alert_window_seconds"`
	BackoffCapSeconds       int  `yaml:"backoff_cap_seconds"`
	TransportTimeoutSeconds int  `yaml:"transport_timeout_seconds"`
	WorkerDisabled          bool `yaml:"worker_disabled"`
}
