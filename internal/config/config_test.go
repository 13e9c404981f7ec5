package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3001", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "ws://localhost:3001/chat", cfg.WebSocket.URL)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, 5, cfg.WebSocket.MaxReconnects)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 30, cfg.Poll.Limit)
	assert.Equal(t, 6, cfg.Poll.ForceRefreshEvery)
	assert.Equal(t, 3*time.Second, cfg.Reconcile.DuplicateWindow)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DORMWORRY_API_URL", "https://api.dormworry.kr")
	t.Setenv("DORMWORRY_WS_URL", "wss://api.dormworry.kr/chat")
	t.Setenv("DORMCLIENT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.dormworry.kr", cfg.API.BaseURL)
	assert.Equal(t, "wss://api.dormworry.kr/chat", cfg.WebSocket.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestParseDurationFallsBackOnGarbage(t *testing.T) {
	v := viper.New()

	v.Set("reconcile.duplicate_window", "soon")
	assert.Equal(t, 3*time.Second, parseDuration(v, "reconcile.duplicate_window", 3*time.Second))

	v.Set("reconcile.duplicate_window", "250ms")
	assert.Equal(t, 250*time.Millisecond, parseDuration(v, "reconcile.duplicate_window", 3*time.Second))

	assert.Equal(t, 5*time.Second, parseDuration(v, "missing.key", 5*time.Second))
}
