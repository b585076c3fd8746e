// Package syncer drives the event list: network-first loading with a cache
// fallback, and optimistic write-through for adds and deletes.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gyaneshwarpardhi/dashboardr/internal/cache"
	"github.com/gyaneshwarpardhi/dashboardr/internal/config"
	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
	"github.com/gyaneshwarpardhi/dashboardr/internal/metrics"
	"github.com/gyaneshwarpardhi/dashboardr/internal/notify"
)

// State is the outcome of the most recent load.
type State int32

const (
	Loading State = iota
	Online
	OfflineWithData
	OfflineNoData
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Online:
		return "online"
	case OfflineWithData:
		return "offline-with-data"
	case OfflineNoData:
		return "offline-no-data"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Remote is the events API as seen by the controller.
type Remote interface {
	FetchAll(ctx context.Context) ([]event.Event, error)
	Add(ctx context.Context, ev event.Event) error
	Delete(ctx context.Context, id event.ID) error
}

// Deps are the collaborators a Controller is built from.
type Deps struct {
	Store  cache.Store
	Meta   cache.Meta
	Remote Remote
	View   notify.Presenter
	Logger *slog.Logger
	Now    func() time.Time // defaults to time.Now
}

// Controller owns one client session. Loads run on the caller's goroutine.
// Cache writes run one at a time, in the order they were issued, on a single
// writer; remote writes run on the task pool.
type Controller struct {
	store  cache.Store
	meta   cache.Meta
	remote Remote
	view   notify.Presenter
	logger *slog.Logger
	now    func() time.Time
	pool   *taskPool
	writer *taskPool
	state  atomic.Int32
}

// New creates a Controller and starts its task pool. Tasks run with ctx, so
// cancelling it abandons in-flight remote writes.
func New(ctx context.Context, deps Deps, conf config.SyncConf) *Controller {
	c := &Controller{
		store:  deps.Store,
		meta:   deps.Meta,
		remote: deps.Remote,
		view:   deps.View,
		logger: deps.Logger,
		now:    deps.Now,
		pool:   newTaskPool(ctx, conf.Workers, conf.QueueDepth),
		writer: newTaskPool(ctx, 1, conf.QueueDepth),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// State returns the outcome of the latest load.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Load fetches the list from the server and shows it, mirroring it into the
// cache in the background. When the fetch fails it shows whatever the cache
// holds instead. The cache is only touched after the fetch has resolved.
func (c *Controller) Load(ctx context.Context) State {
	start := time.Now()
	c.setState(Loading)

	events, err := c.remote.FetchAll(ctx)
	if err == nil {
		c.setState(Online)
		c.view.Show(events)
		c.write(func(ctx context.Context) { c.saveFetched(ctx, events) })
		c.logger.Info("loaded events from network", "count", len(events))
		return c.finishLoad(Online, start)
	}

	c.logger.Info("network request failed, this is expected if offline", "err", err)
	cached, cerr := c.store.GetAll(ctx)
	metrics.CacheOps.WithLabelValues("get_all", metrics.Result(cerr)).Inc()
	if cerr != nil {
		c.logger.Warn("reading local cache failed", "err", cerr)
	}
	if len(cached) == 0 {
		c.setState(OfflineNoData)
		c.raise(notify.NoData, "")
		return c.finishLoad(OfflineNoData, start)
	}

	c.setState(OfflineWithData)
	c.raise(notify.Offline, c.lastUpdated(ctx))
	c.view.Show(cached)
	c.logger.Info("showing cached events", "count", len(cached))
	return c.finishLoad(OfflineWithData, start)
}

func (c *Controller) finishLoad(s State, start time.Time) State {
	metrics.Loads.WithLabelValues(s.String()).Inc()
	metrics.LoadDuration.Observe(float64(time.Since(start).Milliseconds()))
	return s
}

// Reload clears the list and loads again. Used when connectivity returns or
// the server address changes.
func (c *Controller) Reload(ctx context.Context) State {
	c.view.Clear()
	return c.Load(ctx)
}

// Run reloads each time online fires, until ctx is done or online is closed.
func (c *Controller) Run(ctx context.Context, online <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-online:
			if !ok {
				return nil
			}
			c.logger.Info("connection restored, reloading events")
			c.Reload(ctx)
		}
	}
}

// Add shows the new event at once, then writes it to the cache and posts it
// to the server in the background. The cache write is ordered after every
// earlier cache write. A failed post is only logged.
func (c *Controller) Add(d event.Draft) (event.Event, error) {
	if err := d.Validate(); err != nil {
		return event.Event{}, err
	}
	ev := d.Build(c.now())
	c.view.Show([]event.Event{ev})

	c.write(func(ctx context.Context) {
		err := c.store.PutAll(ctx, []event.Event{ev})
		metrics.CacheOps.WithLabelValues("put_all", metrics.Result(err)).Inc()
		if err != nil {
			c.logger.Warn("caching added event failed", "id", ev.ID, "err", err)
			c.raise(notify.SaveError, "")
		}
	})
	c.spawn(func(ctx context.Context) {
		if err := c.remote.Add(ctx, ev); err != nil {
			c.logger.Warn("posting added event failed", "id", ev.ID, "err", err)
		}
	})
	c.logger.Info("event added", "id", ev.ID, "title", ev.Title)
	return ev, nil
}

// Delete removes the event from the list at once, then from the cache and the
// server in the background. A failed server delete is only logged.
func (c *Controller) Delete(id event.ID) {
	c.view.Remove(id)

	c.write(func(ctx context.Context) {
		err := c.store.DeleteByID(ctx, id)
		metrics.CacheOps.WithLabelValues("delete", metrics.Result(err)).Inc()
		if err != nil {
			c.logger.Warn("removing event from cache failed", "id", id, "err", err)
			c.raise(notify.SaveError, "")
		}
	})
	c.spawn(func(ctx context.Context) {
		if err := c.remote.Delete(ctx, id); err != nil {
			c.logger.Warn("posting delete failed", "id", id, "err", err)
		}
	})
	c.logger.Info("event deleted", "id", id)
}

// Wait blocks until all background cache writes and remote calls have settled.
func (c *Controller) Wait() {
	c.writer.Wait()
	c.pool.Wait()
}

// Shutdown stops accepting background work and waits for queued work to finish.
func (c *Controller) Shutdown() {
	c.writer.Drain()
	c.pool.Drain()
}

// saveFetched mirrors a successful fetch into the cache and stamps lastUpdated.
func (c *Controller) saveFetched(ctx context.Context, events []event.Event) {
	err := c.store.PutAll(ctx, events)
	metrics.CacheOps.WithLabelValues("put_all", metrics.Result(err)).Inc()
	if err != nil {
		c.logger.Warn("saving events for offline use failed", "count", len(events), "err", err)
		c.raise(notify.SaveError, "")
		return
	}

	stamp := c.now().UTC().Format(time.RFC3339)
	if err := c.meta.Set(ctx, cache.KeyLastUpdated, stamp); err != nil {
		c.logger.Warn("recording last update time failed", "err", err)
		stamp = ""
	}
	c.raise(notify.DataSaved, stamp)
}

func (c *Controller) lastUpdated(ctx context.Context) string {
	v, ok, err := c.meta.Get(ctx, cache.KeyLastUpdated)
	if err != nil {
		c.logger.Warn("reading last update time failed", "err", err)
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

func (c *Controller) raise(kind notify.Kind, detail string) {
	metrics.Notifications.WithLabelValues(kind.String()).Inc()
	c.view.Notify(kind, detail)
}

// write queues a cache write behind the ones already issued. After Shutdown it
// runs inline.
func (c *Controller) write(t task) {
	if c.writer.Enqueue(t) {
		metrics.TasksQueued.Inc()
		return
	}
	metrics.TasksInline.Inc()
	t(c.writer.ctx)
}

// spawn hands t to the pool, running it inline when the queue is full.
func (c *Controller) spawn(t task) {
	if c.pool.Submit(t) {
		metrics.TasksQueued.Inc()
		return
	}
	metrics.TasksInline.Inc()
	t(c.pool.ctx)
}
