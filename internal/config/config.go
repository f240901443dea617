// Package config loads coordinator configuration from defaults, environment
// variables, and functional options, in that priority order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every tunable the coordinator needs to run standalone.
type Config struct {
	Name      string        `json:"name" env:"COORDINATOR_NAME"`
	Port      int           `json:"port" env:"COORDINATOR_PORT"`
	Namespace string        `json:"namespace" env:"COORDINATOR_NAMESPACE"`

	DedupTTL          time.Duration `json:"dedup_ttl"`
	DedupSweepEvery   time.Duration `json:"dedup_sweep_every"`
	SessionTimeout    time.Duration `json:"session_timeout"`
	SessionSweepEvery time.Duration `json:"session_sweep_every"`

	RedisURL string `json:"redis_url" env:"COORDINATOR_REDIS_URL"`

	EconomicsBaseURL  string        `json:"economics_base_url" env:"COORDINATOR_ECONOMICS_URL"`
	InferenceBaseURL  string        `json:"inference_base_url" env:"COORDINATOR_INFERENCE_URL"`
	CollaboratorTimeout time.Duration `json:"collaborator_timeout"`

	Logging LoggingConfig `json:"logging"`

	// PostgresDSN configures the optional snapshot writer. Empty disables it.
	PostgresDSN string `json:"postgres_dsn" env:"COORDINATOR_POSTGRES_DSN"`
}

// LoggingConfig controls the zap-backed logger.
type LoggingConfig struct {
	Level  string `json:"level" env:"COORDINATOR_LOG_LEVEL"`
	Format string `json:"format" env:"COORDINATOR_LOG_FORMAT"`
}

// Option mutates a Config during construction. Functional options are the
// highest-priority layer, applied after defaults and environment variables.
type Option func(*Config)

// WithPort overrides the listen port.
func WithPort(port int) Option {
	return func(c *Config) { c.Port = port }
}

// WithRedisURL overrides the Redis URL of the agent registry's mirror.
func WithRedisURL(url string) Option {
	return func(c *Config) { c.RedisURL = url }
}

// WithCollaboratorEndpoints overrides the economics/inference base URLs.
func WithCollaboratorEndpoints(economicsURL, inferenceURL string) Option {
	return func(c *Config) {
		c.EconomicsBaseURL = economicsURL
		c.InferenceBaseURL = inferenceURL
	}
}

func defaults() Config {
	return Config{
		Name:                "ohms-coordinator",
		Port:                8090,
		Namespace:           "default",
		DedupTTL:            24 * time.Hour,
		DedupSweepEvery:     time.Minute,
		SessionTimeout:      time.Hour,
		SessionSweepEvery:   time.Minute,
		RedisURL:            "redis://localhost:6379/0",
		EconomicsBaseURL:    "http://localhost:8091",
		InferenceBaseURL:    "http://localhost:8092",
		CollaboratorTimeout: 10 * time.Second,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// New builds a Config from defaults, then environment variables, then opts.
func New(opts ...Option) (*Config, error) {
	cfg := defaults()

	if v := os.Getenv("COORDINATOR_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("COORDINATOR_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COORDINATOR_PORT %q: %w", v, err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("COORDINATOR_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("COORDINATOR_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("COORDINATOR_ECONOMICS_URL"); v != "" {
		cfg.EconomicsBaseURL = v
	}
	if v := os.Getenv("COORDINATOR_INFERENCE_URL"); v != "" {
		cfg.InferenceBaseURL = v
	}
	if v := os.Getenv("COORDINATOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("COORDINATOR_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("COORDINATOR_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	return &cfg, nil
}
