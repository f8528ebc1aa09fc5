package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadExpandsEnvAndParses(t *testing.T) {
	t.Setenv("OPENAI_KEY", "sk-test-123")

	path := writeConfig(t, `
server:
  port: 9090
logging:
  level: debug
queue:
  max_retries: 3
  backoff_cap_seconds: 30
credentials:
  - id: openai-primary
    provider: openai
    model: gpt-4
    api_key: ${OPENAI_KEY}
    tier: primary
    daily_call_limit: 1000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Queue.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.BackoffCapSeconds != 30 {
		t.Errorf("BackoffCapSeconds = %d, want 30", cfg.Queue.BackoffCapSeconds)
	}

	if len(cfg.Credentials) != 1 {
		t.Fatalf("Credentials = %d, want 1", len(cfg.Credentials))
	}
	c := cfg.Credentials[0]
	if c.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q, env var not expanded", c.APIKey)
	}
	if c.DailyCallLimit != 1000 {
		t.Errorf("DailyCallLimit = %d, want 1000", c.DailyCallLimit)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Queue.PollIntervalSeconds != 5 {
		t.Errorf("default PollIntervalSeconds = %d, want 5", cfg.Queue.PollIntervalSeconds)
	}
	if cfg.Queue.MaxRetries != 5 {
		t.Errorf("default MaxRetries = %d, want 5", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.OverflowThreshold != 200 {
		t.Errorf("default OverflowThreshold = %d, want 200", cfg.Queue.OverflowThreshold)
	}
	if cfg.Queue.DeadAlertThreshold != 20 {
		t.Errorf("default DeadAlertThreshold = %d, want 20", cfg.Queue.DeadAlertThreshold)
	}
	if cfg.Queue.DeadAlertWindowSeconds != 300 {
		t.Errorf("default DeadAlertWindowSeconds = %d, want 300", cfg.Queue.DeadAlertWindowSeconds)
	}
	if cfg.Queue.BackoffCapSeconds != 60 {
		t.Errorf("default BackoffCapSeconds = %d, want 60", cfg.Queue.BackoffCapSeconds)
	}
	if cfg.Queue.TransportTimeoutSeconds != 10 {
		t.Errorf("default TransportTimeoutSeconds = %d, want 10", cfg.Queue.TransportTimeoutSeconds)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of missing file succeeded, want error")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: map\n")
	if _, err := Load(path); err == nil {
		t.Error("Load of malformed yaml succeeded, want error")
	}
}
