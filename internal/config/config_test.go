package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_ID", "ABC123")
	t.Setenv("POLL_INTERVAL_SECONDS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ABC123", cfg.Session.ID)
	assert.Equal(t, 3*time.Second, cfg.PollInterval())
	assert.Equal(t, "https://www.youtube.com", cfg.Session.BaseURL)
	assert.Equal(t, 16, cfg.EventBus.Capacity)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.GetHTTPAddr())
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_ID", "ABC123")
	t.Setenv("POLL_INTERVAL_SECONDS", "5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("EVENT_BUS_CAPACITY", "64")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LIVEPOLL_HTTP_PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 64, cfg.EventBus.Capacity)
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, ":9000", cfg.GetHTTPAddr())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("POLL_INTERVAL_SECONDS", "3")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "zero interval", env: map[string]string{"POLL_INTERVAL_SECONDS": "0"}},
		{name: "negative interval", env: map[string]string{"POLL_INTERVAL_SECONDS": "-2"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "trace"}},
		{name: "bad port", env: map[string]string{"LIVEPOLL_HTTP_PORT": "70000"}},
		{name: "zero capacity", env: map[string]string{"EVENT_BUS_CAPACITY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SESSION_ID", "ABC123")
			t.Setenv("POLL_INTERVAL_SECONDS", "3")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
