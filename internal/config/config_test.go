package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
queue:
  path: /var/lib/ingestion/queue
ai:
  credentials_csv: keys.csv
  model_config: models.yaml
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig), true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("log defaults = %+v", cfg.Log)
	}
	if cfg.Server.Port != 8000 {
		t.Fatalf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Queue.PollInterval() != 5*time.Second {
		t.Fatalf("poll interval = %v, want 5s", cfg.Queue.PollInterval())
	}
	if cfg.Queue.MaxContentRetries != 2 {
		t.Fatalf("max content retries = %d, want 2", cfg.Queue.MaxContentRetries)
	}
	if cfg.AI.Provider != "gemini" {
		t.Fatalf("provider = %q, want gemini", cfg.AI.Provider)
	}
	if cfg.AI.Cooldown() != time.Minute {
		t.Fatalf("cooldown = %v, want 1m", cfg.AI.Cooldown())
	}
	if cfg.AI.MaxAttempts != 5 {
		t.Fatalf("max attempts = %d, want 5", cfg.AI.MaxAttempts)
	}
	if cfg.AI.BaseBackoff() != time.Second || cfg.AI.MaxBackoff() != 10*time.Second {
		t.Fatalf("backoff = %v / %v, want 1s / 10s", cfg.AI.BaseBackoff(), cfg.AI.MaxBackoff())
	}
	if !cfg.Runtime.Dev {
		t.Fatal("dev flag not carried into runtime config")
	}
}

func TestLoadConfigFractionalSeconds(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
queue:
  path: /tmp/q
  poll_interval_seconds: 0.5
ai:
  credentials_csv: keys.csv
  model_config: models.yaml
  delay_between_calls_seconds: 1.5
  cooldown_seconds: 90
`), false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Queue.PollInterval() != 500*time.Millisecond {
		t.Fatalf("poll interval = %v, want 500ms", cfg.Queue.PollInterval())
	}
	if cfg.AI.DelayBetweenCalls() != 1500*time.Millisecond {
		t.Fatalf("delay = %v, want 1.5s", cfg.AI.DelayBetweenCalls())
	}
	if cfg.AI.Cooldown() != 90*time.Second {
		t.Fatalf("cooldown = %v, want 90s", cfg.AI.Cooldown())
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing queue path", `
ai:
  credentials_csv: keys.csv
  model_config: models.yaml
`},
		{"missing credentials csv", `
queue:
  path: /tmp/q
ai:
  model_config: models.yaml
`},
		{"missing model config", `
queue:
  path: /tmp/q
ai:
  credentials_csv: keys.csv
`},
		{"unknown provider", `
queue:
  path: /tmp/q
ai:
  provider: petals
  credentials_csv: keys.csv
  model_config: models.yaml
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.content), false); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestLoadConfigRateLimitWindowDefault(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
redis:
  url: localhost:6379
  submit_limit: 10
`), false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Redis.SubmitWindow() != time.Minute {
		t.Fatalf("submit window = %v, want 1m default", cfg.Redis.SubmitWindow())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), false); err == nil {
		t.Fatal("expected error for missing file")
	}
}
