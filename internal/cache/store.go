// Package cache holds the on-device copy of the event list: a durable table of
// events keyed by id, plus a small string store for sync metadata.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/dashboardr/internal/config"
	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
)

var (
	// ErrCacheWrite is returned when a PutAll unit of work was rolled back.
	ErrCacheWrite = errors.New("events were not added to the store")
	// ErrCacheDelete is returned when a DeleteByID unit of work was rolled back.
	ErrCacheDelete = errors.New("events were not deleted from the store")

	errMissingID = errors.New("event id is required")
)

// KeyLastUpdated is the meta key holding the time of the last successful full fetch.
const KeyLastUpdated = "lastUpdated"

// Store is the durable events table. Every mutation is one atomic unit:
// either all of it is applied or none of it is.
type Store interface {
	PutAll(ctx context.Context, events []event.Event) error
	DeleteByID(ctx context.Context, id event.ID) error
	GetAll(ctx context.Context) ([]event.Event, error)
	Close() error
}

// Meta is a string-keyed durable store for scalars such as KeyLastUpdated.
type Meta interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Handle bundles the opened store with its meta store.
type Handle struct {
	Store    Store
	Meta     Meta
	Backend  string
	Degraded bool // true when persistence was unavailable and no-ops are in use
}

// Close releases the underlying backend.
func (h *Handle) Close() error {
	return h.Store.Close()
}

// Open ensures the events table exists on the configured backend. When the
// backend cannot provide persistence the returned handle degrades to no-ops
// instead of failing; only an unknown backend name is an error.
func Open(ctx context.Context, cfg config.CacheConf, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Backend {
	case config.BackendBolt:
		b, err := OpenBolt(cfg.Path)
		if err != nil {
			logger.Warn("local cache unavailable, continuing without persistence", "backend", cfg.Backend, "path", cfg.Path, "err", err)
			return degraded(cfg.Backend), nil
		}
		return &Handle{Store: b, Meta: b, Backend: cfg.Backend}, nil
	case config.BackendRedis:
		r, err := OpenRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("local cache unavailable, continuing without persistence", "backend", cfg.Backend, "addr", cfg.Redis.Addr, "err", err)
			return degraded(cfg.Backend), nil
		}
		return &Handle{Store: r, Meta: r, Backend: cfg.Backend}, nil
	case config.BackendMemory:
		m := NewMemory()
		return &Handle{Store: m, Meta: m, Backend: cfg.Backend}, nil
	case config.BackendNone:
		return degraded(cfg.Backend), nil
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}

func degraded(backend string) *Handle {
	return &Handle{Store: Noop{}, Meta: Noop{}, Backend: backend, Degraded: true}
}

func writeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrCacheWrite, err)
}

func deleteErr(err error) error {
	return fmt.Errorf("%w: %w", ErrCacheDelete, err)
}
