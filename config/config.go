// Package config provides configuration management for the application.
// Settings come from three layers: built-in defaults, an optional YAML file
// for the tunables (guardrails, storage, cache), and environment variables
// (optionally via .env) for deployment-specific values and secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"askmom/internal/cache"
	"askmom/internal/generator"
	"askmom/internal/guardrails"
	"askmom/internal/store"
)

// Config holds the application configuration.
type Config struct {
	// Environment is "development" or "production"; it selects log output.
	Environment string `yaml:"environment"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// AppName is the product name used in contact drafts.
	AppName string `yaml:"app_name"`

	Server     ServerConfig      `yaml:"server"`
	Metrics    MetricsConfig     `yaml:"metrics"`
	Store      store.Config      `yaml:"store"`
	Cache      CacheConfig       `yaml:"cache"`
	Guardrails guardrails.Config `yaml:"guardrails"`
	Model      ModelConfig       `yaml:"model"`
	Sweep      SweepConfig       `yaml:"sweep"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `yaml:"port"`

	// MasterKey is the bearer token required on API routes. Empty disables
	// authentication (development only).
	MasterKey string `yaml:"master_key"`

	// BodyLimit is the echo body-limit setting, e.g. "64K".
	BodyLimit string `yaml:"body_limit"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// CacheConfig selects the reply snapshot cache backend.
type CacheConfig struct {
	// Backend is "local" or "redis".
	Backend string `yaml:"backend"`

	// TTL applies to the local backend.
	TTL time.Duration `yaml:"ttl"`

	Redis cache.RedisConfig `yaml:"redis"`
}

// ModelConfig controls the optional external generator.
type ModelConfig struct {
	// Enabled turns on external model calls when the stub recommends them.
	Enabled bool `yaml:"enabled"`

	// Timeout bounds a single model call.
	Timeout time.Duration `yaml:"timeout"`

	Generator generator.Config `yaml:"generator"`
}

// SweepConfig tunes the retention sweep.
type SweepConfig struct {
	// RetentionDays is how long closed conversations are kept.
	RetentionDays int `yaml:"retention_days"`

	// LoopInterval, when positive, runs the sweep on a ticker in addition
	// to the request-driven throttle.
	LoopInterval time.Duration `yaml:"loop_interval"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		AppName:     "Mom's Computer",
		Server: ServerConfig{
			Port:      "8080",
			BodyLimit: "64K",
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
		Store: store.DefaultConfig(),
		Cache: CacheConfig{
			Backend: "local",
		},
		Guardrails: guardrails.DefaultConfig(),
		Model: ModelConfig{
			Timeout: 15 * time.Second,
			Generator: generator.Config{
				BaseURL: "https://api.openai.com/v1",
			},
		},
		Sweep: SweepConfig{
			RetentionDays: 30,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE (or ./config.yaml when present), then environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays deployment settings and secrets from the environment.
func applyEnv(cfg *Config) {
	setString(&cfg.Environment, "ENVIRONMENT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.AppName, "APP_NAME")

	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.MasterKey, "MASTER_KEY")
	setString(&cfg.Server.BodyLimit, "BODY_LIMIT")

	setString(&cfg.Store.Type, "STORE_TYPE")
	setString(&cfg.Store.SQLite.Path, "SQLITE_PATH")
	setString(&cfg.Store.PostgreSQL.URL, "DATABASE_URL")
	setString(&cfg.Store.MongoDB.URL, "MONGODB_URL")
	setString(&cfg.Store.MongoDB.Database, "MONGODB_DATABASE")

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Backend = "redis"
		cfg.Cache.Redis.URL = v
	}

	if v := os.Getenv("MODEL_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Model.Enabled = b
		}
	}
	setString(&cfg.Model.Generator.BaseURL, "MODEL_BASE_URL")
	setString(&cfg.Model.Generator.APIKey, "MODEL_API_KEY")
	setString(&cfg.Model.Generator.Model, "MODEL_NAME")
	if v := os.Getenv("MODEL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Model.Timeout = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			cfg.Model.Timeout = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sweep.RetentionDays = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
