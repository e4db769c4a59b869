package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type QueueConfig struct {
	Path                    string  `yaml:"path"`
	PollIntervalSeconds     float64 `yaml:"poll_interval_seconds"`
	PostSuccessDelaySeconds float64 `yaml:"post_success_delay_seconds"`
	MaxContentRetries       int     `yaml:"max_content_retries"`
}

type RedisConfig struct {
	URL                 string `yaml:"url"`
	Password            string `yaml:"password"`
	DB                  int    `yaml:"db"`
	SubmitLimit         int    `yaml:"submit_limit"`
	SubmitWindowSeconds int    `yaml:"submit_window_seconds"`
}

type AIConfig struct {
	Provider                string  `yaml:"provider"` // gemini | openai-compatible
	CredentialsCSV          string  `yaml:"credentials_csv"`
	ModelConfig             string  `yaml:"model_config"`
	BaseURL                 string  `yaml:"base_url"` // openai-compatible gateway
	CooldownSeconds         float64 `yaml:"cooldown_seconds"`
	DelayBetweenCallSeconds float64 `yaml:"delay_between_calls_seconds"`
	MaxAttempts             int     `yaml:"max_attempts"`
	BaseBackoffSeconds      float64 `yaml:"base_backoff_seconds"`
	MaxBackoffSeconds       float64 `yaml:"max_backoff_seconds"`
	Temperature             float32 `yaml:"temperature"`
}

type Config struct {
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Queue  QueueConfig  `yaml:"queue"`
	Redis  RedisConfig  `yaml:"redis"`
	AI     AIConfig     `yaml:"ai"`

	Runtime RuntimeConfig `yaml:"-"`
}

func (q QueueConfig) PollInterval() time.Duration {
	return secondsToDuration(q.PollIntervalSeconds)
}

func (q QueueConfig) PostSuccessDelay() time.Duration {
	return secondsToDuration(q.PostSuccessDelaySeconds)
}

func (r RedisConfig) SubmitWindow() time.Duration {
	return time.Duration(r.SubmitWindowSeconds) * time.Second
}

func (a AIConfig) Cooldown() time.Duration {
	return secondsToDuration(a.CooldownSeconds)
}

func (a AIConfig) DelayBetweenCalls() time.Duration {
	return secondsToDuration(a.DelayBetweenCallSeconds)
}

func (a AIConfig) BaseBackoff() time.Duration {
	return secondsToDuration(a.BaseBackoffSeconds)
}

func (a AIConfig) MaxBackoff() time.Duration {
	return secondsToDuration(a.MaxBackoffSeconds)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Queue.PollIntervalSeconds <= 0 {
		cfg.Queue.PollIntervalSeconds = 5
	}
	if cfg.Queue.MaxContentRetries <= 0 {
		cfg.Queue.MaxContentRetries = 2
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "gemini"
	}
	if cfg.AI.CooldownSeconds <= 0 {
		cfg.AI.CooldownSeconds = 60
	}
	if cfg.AI.DelayBetweenCallSeconds <= 0 {
		cfg.AI.DelayBetweenCallSeconds = 1
	}
	if cfg.AI.MaxAttempts <= 0 {
		cfg.AI.MaxAttempts = 5
	}
	if cfg.AI.BaseBackoffSeconds <= 0 {
		cfg.AI.BaseBackoffSeconds = 1
	}
	if cfg.AI.MaxBackoffSeconds <= 0 {
		cfg.AI.MaxBackoffSeconds = 10
	}
	if cfg.AI.Temperature <= 0 {
		cfg.AI.Temperature = 0.3
	}
	if cfg.Redis.SubmitLimit > 0 && cfg.Redis.SubmitWindowSeconds <= 0 {
		cfg.Redis.SubmitWindowSeconds = 60
	}

	// Minimal validation
	if cfg.Queue.Path == "" {
		return nil, errors.New("queue.path is required")
	}
	if cfg.AI.CredentialsCSV == "" {
		return nil, errors.New("ai.credentials_csv is required")
	}
	if cfg.AI.ModelConfig == "" {
		return nil, errors.New("ai.model_config is required")
	}
	switch cfg.AI.Provider {
	case "gemini", "openai-compatible":
	default:
		return nil, fmt.Errorf("unknown ai.provider %q", cfg.AI.Provider)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
