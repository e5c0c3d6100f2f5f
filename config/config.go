// Package config loads service configuration from YAML with environment
// overrides and supports hot reload of the file-backed parts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const envPrefix = "PIANO"

// Config is the full service configuration. Zero values are filled from
// Default before validation.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Pool   PoolConfig   `yaml:"pool"`
	Store  StoreConfig  `yaml:"store"`
	Rate   RateConfig   `yaml:"rate"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type PoolConfig struct {
	Workers     int `yaml:"workers"`
	MailboxSize int `yaml:"mailbox_size"`
}

type StoreConfig struct {
	// NatsURL enables the NATS-backed store when set. Empty means
	// in-memory.
	NatsURL   string        `yaml:"nats_url"`
	Bucket    string        `yaml:"bucket"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

type RateConfig struct {
	// RPS of 0 disables per-user rate limiting.
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Pool: PoolConfig{
			Workers:     8,
			MailboxSize: 1024,
		},
		Store: StoreConfig{
			Bucket:    "piano-notes",
			CacheSize: 256,
			CacheTTL:  30 * time.Second,
		},
		Rate: RateConfig{
			RPS:     50,
			Burst:   100,
			IdleTTL: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path (optional, "" skips it), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(envPrefix + "_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(envPrefix + "_POOL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.Workers = n
		}
	}
	if v := os.Getenv(envPrefix + "_POOL_MAILBOX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.MailboxSize = n
		}
	}
	if v := os.Getenv(envPrefix + "_NATS_URL"); v != "" {
		c.Store.NatsURL = v
	}
	if v := os.Getenv(envPrefix + "_STORE_BUCKET"); v != "" {
		c.Store.Bucket = v
	}
	if v := os.Getenv(envPrefix + "_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Rate.RPS = f
		}
	}
	if v := os.Getenv(envPrefix + "_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(envPrefix + "_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Pool.Workers <= 0 {
		return fmt.Errorf("pool.workers must be positive, got %d", c.Pool.Workers)
	}
	if c.Pool.MailboxSize <= 0 {
		return fmt.Errorf("pool.mailbox_size must be positive, got %d", c.Pool.MailboxSize)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug|info|warn|error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Rate.RPS < 0 {
		return fmt.Errorf("rate.rps must not be negative, got %v", c.Rate.RPS)
	}
	return nil
}
