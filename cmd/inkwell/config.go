package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/inkwellhq/inkwell/syndication"
)

type serverConfig struct {
	Listen       string        `yaml:"listen"`
	DatabasePath string        `yaml:"database_path"`
	LogLevel     string        `yaml:"log_level"`
	AdminToken   string        `yaml:"admin_token"`
	Jobs         jobsConfig    `yaml:"jobs"`
	Webhooks     webhookConfig `yaml:"webhooks"`
	Feed         feedConfig    `yaml:"feed"`
}

type jobsConfig struct {
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type webhookConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type feedConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// loadConfig reads the yaml config with environment variables expanded.
// A missing file falls back to environment-only defaults. godotenv picks up
// a local .env first so ${VAR} references resolve in development.
func loadConfig(path string) (*serverConfig, error) {
	_ = godotenv.Load()

	cfg := &serverConfig{}
	data, err := os.ReadFile(path)
	if err == nil {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.setDefaults()
	return cfg, nil
}

func (c *serverConfig) setDefaults() {
	if c.Listen == "" {
		c.Listen = ":" + env("PORT", "8080")
	}
	if c.DatabasePath == "" {
		c.DatabasePath = env("DATABASE_PATH", "db/inkwell.db")
	}
	if c.LogLevel == "" {
		c.LogLevel = env("LOG_LEVEL", "info")
	}
	if c.AdminToken == "" {
		c.AdminToken = os.Getenv("ADMIN_TOKEN")
	}
}

func (c *serverConfig) service() *syndication.Config {
	return &syndication.Config{
		JobInterval:        c.Jobs.Interval,
		JobBatchSize:       c.Jobs.BatchSize,
		WebhookTimeout:     c.Webhooks.Timeout,
		WebhookMaxAttempts: c.Webhooks.MaxAttempts,
		FeedDefaultLimit:   c.Feed.DefaultLimit,
		FeedMaxLimit:       c.Feed.MaxLimit,
		AdminToken:         c.AdminToken,
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
