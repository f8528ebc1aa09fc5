package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Queue.PollIntervalSeconds == 0 {
		cfg.Queue.PollIntervalSeconds = 5
	}
	if cfg.Queue.MaxRetries == 0 {
		cfg.Queue.MaxRetries = 5
	}
	if cfg.Queue.OverflowThreshold == 0 {
		cfg.Queue.OverflowThreshold = 200
	}
	if cfg.Queue.DeadAlertThreshold == 0 {
		cfg.Queue.DeadAlertThreshold = 20
	}
	if cfg.Queue.DeadAlertWindowSeconds == 0 {
		cfg.Queue.DeadAlertWindowSeconds = 300
	}
	if cfg.Queue.BackoffCapSeconds == 0 {
		cfg.Queue.BackoffCapSeconds = 60
	}
	if cfg.Queue.TransportTimeoutSeconds == 0 {
		cfg.Queue.TransportTimeoutSeconds = 10
	}
}
