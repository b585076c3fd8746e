package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the top-level YAML structure shared by the client and eventsd.
type Config struct {
	Version string     `yaml:"version"`
	Server  ServerConf `yaml:"server"`
	Cache   CacheConf  `yaml:"cache"`
	Sync    SyncConf   `yaml:"sync"`
	Log     LogConf    `yaml:"log"`
}

// ServerConf locates the events API. BaseURL is used by the client,
// Listen by eventsd.
type ServerConf struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"` // 0 = no timeout
	Listen    string `yaml:"listen"`
}

// Timeout returns the request timeout as a duration.
func (s ServerConf) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// Cache backends.
const (
	BackendBolt   = "bolt"
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// CacheConf selects and configures the local event store.
type CacheConf struct {
	Backend string    `yaml:"backend"`
	Path    string    `yaml:"path"` // bolt file
	Redis   RedisConf `yaml:"redis"`
}

// RedisConf is only read when Backend is "redis".
type RedisConf struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SyncConf holds tunable settings for the async task pool and the
// connectivity probe.
type SyncConf struct {
	Workers         int `yaml:"workers"`
	QueueDepth      int `yaml:"queue_depth"`
	ProbeIntervalMs int `yaml:"probe_interval_ms"`
}

// ProbeInterval returns the connectivity probe period.
func (s SyncConf) ProbeInterval() time.Duration {
	return time.Duration(s.ProbeIntervalMs) * time.Millisecond
}

// LogConf controls the slog handler.
type LogConf struct {
	Level string `yaml:"level"`
}

// SlogLevel maps the configured level name; unknown names fall back to info.
func (l LogConf) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{Version: "v1"}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:8080"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = BackendBolt
	}
	if cfg.Cache.Backend == BackendBolt && cfg.Cache.Path == "" {
		cfg.Cache.Path = "dashboardr.db"
	}
	if cfg.Cache.Redis.KeyPrefix == "" {
		cfg.Cache.Redis.KeyPrefix = "dashboardr:"
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.QueueDepth == 0 {
		cfg.Sync.QueueDepth = 256
	}
	if cfg.Sync.ProbeIntervalMs == 0 {
		cfg.Sync.ProbeIntervalMs = 5000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
