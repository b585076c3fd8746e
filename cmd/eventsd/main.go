package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/dashboardr/internal/api"
	"github.com/gyaneshwarpardhi/dashboardr/internal/cache"
	"github.com/gyaneshwarpardhi/dashboardr/internal/config"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides server.listen)")
	cfgPath := flag.String("config", "eventsd.yaml", "Path to server YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	cfg := config.Default()
	loader, err := config.NewLoader(*cfgPath, logger)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("no config file, using defaults", "path", *cfgPath)
	case err != nil:
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	default:
		cfg = loader.Config()
	}
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Listen = *addr
	}
	level := new(slog.LevelVar)
	level.Set(cfg.Log.SlogLevel())
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	if loader != nil {
		followLogLevel(loader, level)
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── Event store ──────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handle, err := cache.Open(ctx, cfg.Cache, logger)
	if err != nil {
		slog.Error("failed to open event store", "err", err)
		os.Exit(1)
	}
	defer handle.Close()
	if handle.Degraded {
		slog.Warn("event store has no persistence, events will be lost on exit", "backend", handle.Backend)
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      api.New(handle.Store, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "backend", handle.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	slog.Info("goodbye")
}

// followLogLevel applies log.level from every reloaded config. Listen address
// and store changes need a restart.
func followLogLevel(loader *config.Loader, level *slog.LevelVar) {
	loader.OnChange(func(c *config.Config) {
		next := c.Log.SlogLevel()
		if next == level.Level() {
			return
		}
		level.Set(next)
		slog.Info("log level hot-reloaded", "level", next)
	})
}
