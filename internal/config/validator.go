package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the config for:
//   - a version
//   - an absolute http(s) server base URL
//   - a known cache backend with the settings that backend needs
//   - non-negative tuning values
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}

	u, err := url.Parse(cfg.Server.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Sprintf("server.base_url %q: %v", cfg.Server.BaseURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Sprintf("server.base_url %q: scheme must be http or https", cfg.Server.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Sprintf("server.base_url %q: host is required", cfg.Server.BaseURL))
	}
	if cfg.Server.TimeoutMs < 0 {
		errs = append(errs, "server.timeout_ms must not be negative")
	}

	switch cfg.Cache.Backend {
	case BackendBolt:
		if strings.TrimSpace(cfg.Cache.Path) == "" {
			errs = append(errs, "cache.path is required for the bolt backend")
		}
	case BackendRedis:
		if strings.TrimSpace(cfg.Cache.Redis.Addr) == "" {
			errs = append(errs, "cache.redis.addr is required for the redis backend")
		}
	case BackendMemory, BackendNone:
	default:
		errs = append(errs, fmt.Sprintf("cache.backend %q: must be one of bolt, redis, memory, none", cfg.Cache.Backend))
	}

	if cfg.Sync.Workers < 0 {
		errs = append(errs, "sync.workers must not be negative")
	}
	if cfg.Sync.QueueDepth < 0 {
		errs = append(errs, "sync.queue_depth must not be negative")
	}
	if cfg.Sync.ProbeIntervalMs < 0 {
		errs = append(errs, "sync.probe_interval_ms must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
