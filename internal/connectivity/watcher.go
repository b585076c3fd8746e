// Package connectivity tells the client when the events server becomes
// reachable again.
package connectivity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/dashboardr/internal/metrics"
)

const (
	// HealthPath is probed relative to the API base URL.
	HealthPath = "healthz"
	// DefaultInterval is used when no positive interval is configured.
	DefaultInterval = 5 * time.Second
)

// Watcher polls the server's health endpoint. Any HTTP response, whatever its
// status, means the network path is up.
type Watcher struct {
	baseURL  func() string
	client   *http.Client
	interval time.Duration
	logger   *slog.Logger

	known  bool
	online bool
}

// New creates a Watcher. baseURL is read on every probe so a reloaded config
// takes effect without restarting the watcher.
func New(baseURL func() string, client *http.Client, interval time.Duration, logger *slog.Logger) *Watcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{baseURL: baseURL, client: client, interval: interval, logger: logger}
}

// Start probes once immediately and then every interval until ctx is done.
// The returned channel receives a value each time the server goes from
// unreachable to reachable; the first probe only sets the baseline. Signals
// are coalesced when the reader falls behind. The channel is closed on exit.
func (w *Watcher) Start(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.step(ctx, out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.step(ctx, out)
			}
		}
	}()
	return out
}

func (w *Watcher) step(ctx context.Context, out chan<- struct{}) {
	up := w.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	if w.transition(up) {
		select {
		case out <- struct{}{}:
		default:
		}
	}
}

// transition records up and reports whether it is an offline to online change.
func (w *Watcher) transition(up bool) bool {
	was, known := w.online, w.known
	w.online, w.known = up, true
	if up {
		metrics.Online.Set(1)
	} else {
		metrics.Online.Set(0)
	}

	if known && was != up {
		if up {
			w.logger.Info("server reachable again")
		} else {
			w.logger.Info("server unreachable, working offline")
		}
	}
	return known && !was && up
}

// Probe makes one health request and reports whether any response came back.
func (w *Watcher) Probe(ctx context.Context) bool {
	// A hung probe must not overlap the next tick.
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	url := strings.TrimRight(w.baseURL(), "/") + "/" + HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		w.logger.Warn("building health probe failed", "url", url, "err", err)
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Debug("health probe failed", "url", url, "err", err)
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true
}
