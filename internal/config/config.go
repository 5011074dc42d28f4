package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the live session poller
type Config struct {
	// Server configuration
	HTTPPort int    `env:"LIVEPOLL_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Session configuration
	Session SessionConfig

	// Event bus configuration
	EventBus EventBusConfig

	// Redis configuration
	Redis RedisConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// SessionConfig identifies the session to poll
type SessionConfig struct {
	ID                  string        `env:"SESSION_ID,required"`
	PollIntervalSeconds int           `env:"POLL_INTERVAL_SECONDS,required"`
	BaseURL             string        `env:"LIVEPOLL_BASE_URL" envDefault:"https://www.youtube.com"`
	HealthCheckInterval time.Duration `env:"HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// EventBusConfig holds in-process event bus configuration
type EventBusConfig struct {
	Capacity int `env:"EVENT_BUS_CAPACITY" envDefault:"16"`
}

// RedisConfig holds Redis connection configuration. The stream bridge is
// disabled when Addr is empty.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR"`
	Password  string `env:"REDIS_PASS"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	StreamMax int64  `env:"REDIS_STREAM_MAXLEN" envDefault:"1000"`

	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	Request  time.Duration `env:"LIVEPOLL_REQUEST_TIMEOUT" envDefault:"10s"`
	Shutdown time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if c.Session.PollIntervalSeconds < 1 {
		return fmt.Errorf("poll interval must be a positive number of seconds: %d", c.Session.PollIntervalSeconds)
	}
	if c.Session.HealthCheckInterval <= 0 {
		return fmt.Errorf("health check interval must be positive")
	}

	if c.EventBus.Capacity < 1 {
		return fmt.Errorf("event bus capacity must be at least 1")
	}

	if c.Timeouts.Request <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// PollInterval returns the configured poll interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Session.PollIntervalSeconds) * time.Second
}

// RedisEnabled reports whether the Redis stream bridge is configured
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
