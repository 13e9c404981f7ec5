package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dormworry/dormclient/pkg/log"
)

type Config struct {
	API       APIConfig
	WebSocket WebSocketConfig
	Poll      PollConfig
	Reconcile ReconcileConfig
	Log       log.Config
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout time.Duration
}

type WebSocketConfig struct {
	URL               string
	PingInterval      time.Duration `mapstructure:"ping_interval"`
	PongWait          time.Duration `mapstructure:"pong_wait"`
	WriteWait         time.Duration `mapstructure:"write_wait"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
	MaxReconnects     int           `mapstructure:"max_reconnects"`
}

type PollConfig struct {
	Interval time.Duration
	// Limit is how many of the newest messages each tick fetches.
	Limit int
	// ForceRefreshEvery forces a reconciliation pass every K ticks even
	// when the newest message id has not changed.
	ForceRefreshEvery int `mapstructure:"force_refresh_every"`
}

type ReconcileConfig struct {
	// DuplicateWindow is the timestamp tolerance under which two messages
	// with the same content and sender are considered the same send.
	DuplicateWindow time.Duration `mapstructure:"duplicate_window"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("dormclient")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvPrefix("dormclient")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file; rely on defaults and env vars.
	}

	// Set defaults
	v.SetDefault("api.base_url", "http://localhost:3001")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("websocket.url", "ws://localhost:3001/chat")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.reconnect_interval", "3s")
	v.SetDefault("websocket.max_reconnects", 5)
	v.SetDefault("poll.interval", "5s")
	v.SetDefault("poll.limit", 30)
	v.SetDefault("poll.force_refresh_every", 6)
	v.SetDefault("reconcile.duplicate_window", "3s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.app", "dormclient")

	// Override from environment
	v.BindEnv("api.base_url", "DORMWORRY_API_URL")
	v.BindEnv("websocket.url", "DORMWORRY_WS_URL")
	v.BindEnv("log.level", "DORMCLIENT_LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.API.Timeout = parseDuration(v, "api.timeout", 10*time.Second)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.WebSocket.ReconnectInterval = parseDuration(v, "websocket.reconnect_interval", 3*time.Second)
	cfg.Poll.Interval = parseDuration(v, "poll.interval", 5*time.Second)
	cfg.Reconcile.DuplicateWindow = parseDuration(v, "reconcile.duplicate_window", 3*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
