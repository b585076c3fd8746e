package syncer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/dashboardr/internal/cache"
	"github.com/gyaneshwarpardhi/dashboardr/internal/config"
	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
	"github.com/gyaneshwarpardhi/dashboardr/internal/notify"
	"github.com/gyaneshwarpardhi/dashboardr/internal/syncer"
)

var errOffline = errors.New("dial tcp: connection refused")

// fakeRemote records calls and fails FetchAll while offline is set.
type fakeRemote struct {
	mu      sync.Mutex
	events  []event.Event
	offline bool
	fetches int
	added   []event.Event
	deleted []event.ID
}

func (f *fakeRemote) FetchAll(context.Context) ([]event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.offline {
		return nil, errOffline
	}
	return append([]event.Event(nil), f.events...), nil
}

func (f *fakeRemote) Add(_ context.Context, ev event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, ev)
	if f.offline {
		return errOffline
	}
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, id event.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.offline {
		return errOffline
	}
	return nil
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// brokenStore fails every mutation, like a store whose transaction aborts.
type brokenStore struct{ *cache.Memory }

func (brokenStore) PutAll(context.Context, []event.Event) error {
	return cache.ErrCacheWrite
}

func (brokenStore) DeleteByID(context.Context, event.ID) error {
	return cache.ErrCacheDelete
}

type fixture struct {
	ctl    *syncer.Controller
	store  *cache.Memory
	remote *fakeRemote
	view   *notify.Terminal
}

func newFixture(t *testing.T, store cache.Store, meta cache.Meta, now func() time.Time) *fixture {
	t.Helper()
	mem := cache.NewMemory()
	if store == nil {
		store = mem
	}
	if meta == nil {
		meta = mem
	}
	f := &fixture{
		store:  mem,
		remote: &fakeRemote{},
		view:   notify.NewTerminal(io.Discard),
	}
	f.ctl = syncer.New(context.Background(), syncer.Deps{
		Store:  store,
		Meta:   meta,
		Remote: f.remote,
		View:   f.view,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    now,
	}, config.SyncConf{Workers: 2, QueueDepth: 16})
	t.Cleanup(f.ctl.Shutdown)
	return f
}

func TestLoad_OnlineShowsAndCaches(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	conf := event.Event{ID: "1", Title: "Conf", Date: "2025-01-01", City: "NYC", Note: ""}
	f.remote.events = []event.Event{conf}

	before := time.Now().UTC().Truncate(time.Second)
	state := f.ctl.Load(context.Background())
	f.ctl.Wait()

	assert.Equal(t, syncer.Online, state)
	assert.Equal(t, syncer.Online, f.ctl.State())
	assert.Equal(t, []event.Event{conf}, f.view.Items())

	cached, err := f.store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []event.Event{conf}, cached)

	stamp, ok, err := f.store.Get(context.Background(), cache.KeyLastUpdated)
	require.NoError(t, err)
	require.True(t, ok)
	saved, err := time.Parse(time.RFC3339, stamp)
	require.NoError(t, err)
	assert.False(t, saved.Before(before), "lastUpdated %s is before the load started", stamp)

	assert.True(t, f.view.Raised(notify.DataSaved))
	assert.False(t, f.view.Raised(notify.Offline))
}

func TestLoad_OfflineEmptyCache(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.remote.offline = true

	state := f.ctl.Load(context.Background())
	f.ctl.Wait()

	assert.Equal(t, syncer.OfflineNoData, state)
	assert.Empty(t, f.view.Items())
	assert.True(t, f.view.Raised(notify.NoData))
	assert.False(t, f.view.Raised(notify.Offline))
}

func TestLoad_OfflineWithCachedRecord(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	cached := event.Event{ID: "7", Title: "Cached"}
	require.NoError(t, f.store.PutAll(context.Background(), []event.Event{cached}))
	require.NoError(t, f.store.Set(context.Background(), cache.KeyLastUpdated, "2025-01-01T00:00:00Z"))
	f.remote.offline = true

	state := f.ctl.Load(context.Background())

	assert.Equal(t, syncer.OfflineWithData, state)
	assert.Equal(t, []event.Event{cached}, f.view.Items())
	assert.True(t, f.view.Raised(notify.Offline))
	assert.False(t, f.view.Raised(notify.NoData))
}

func TestLoad_CacheFailureKeepsOnlineState(t *testing.T) {
	mem := cache.NewMemory()
	f := newFixture(t, brokenStore{mem}, mem, nil)
	f.remote.events = []event.Event{{ID: "1", Title: "Conf"}}

	state := f.ctl.Load(context.Background())
	f.ctl.Wait()

	assert.Equal(t, syncer.Online, state)
	assert.Len(t, f.view.Items(), 1)
	assert.True(t, f.view.Raised(notify.SaveError))
	assert.False(t, f.view.Raised(notify.DataSaved))

	_, ok, err := mem.Get(context.Background(), cache.KeyLastUpdated)
	require.NoError(t, err)
	assert.False(t, ok, "lastUpdated must not move when the cache write failed")
}

func TestAdd(t *testing.T) {
	now := time.UnixMilli(1735689600123)
	f := newFixture(t, nil, nil, func() time.Time { return now })

	ev, err := f.ctl.Add(event.Draft{Title: "Meetup", Date: "2025-02-02", City: "Austin", Note: "bring snacks"})
	require.NoError(t, err)
	f.ctl.Wait()

	want := event.Event{ID: "1735689600123", Title: "Meetup", Date: "2025-02-02", City: "Austin", Note: "bring snacks"}
	assert.Equal(t, want, ev)
	assert.Equal(t, []event.Event{want}, f.view.Items())
	assert.Equal(t, []event.Event{want}, f.remote.added)

	cached, err := f.store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []event.Event{want}, cached)
}

func TestAdd_OfflineStillCaches(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.remote.offline = true

	_, err := f.ctl.Add(event.Draft{Title: "Offline meetup"})
	require.NoError(t, err)
	f.ctl.Wait()

	cached, err := f.store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 1)
	assert.Len(t, f.view.Items(), 1)
	assert.False(t, f.view.Raised(notify.SaveError))
}

func TestAdd_RejectsBlankTitle(t *testing.T) {
	f := newFixture(t, nil, nil, nil)

	_, err := f.ctl.Add(event.Draft{Title: "  "})
	require.ErrorIs(t, err, event.ErrInvalidDraft)
	f.ctl.Wait()

	assert.Empty(t, f.view.Items())
	assert.Empty(t, f.remote.added)
}

func TestAdd_CacheFailureRaisesSaveError(t *testing.T) {
	mem := cache.NewMemory()
	f := newFixture(t, brokenStore{mem}, mem, nil)

	_, err := f.ctl.Add(event.Draft{Title: "Meetup"})
	require.NoError(t, err)
	f.ctl.Wait()

	assert.Len(t, f.view.Items(), 1)
	assert.True(t, f.view.Raised(notify.SaveError))
	assert.Len(t, f.remote.added, 1)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.remote.events = []event.Event{{ID: "42", Title: "Gone"}, {ID: "43", Title: "Stays"}}
	f.ctl.Load(context.Background())
	f.ctl.Wait()

	f.ctl.Delete("42")
	f.ctl.Wait()

	assert.Equal(t, []event.Event{{ID: "43", Title: "Stays"}}, f.view.Items())
	assert.Equal(t, []event.ID{"42"}, f.remote.deleted)

	cached, err := f.store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []event.Event{{ID: "43", Title: "Stays"}}, cached)
}

func TestDelete_CacheFailureRaisesSaveError(t *testing.T) {
	mem := cache.NewMemory()
	f := newFixture(t, brokenStore{mem}, mem, nil)

	f.ctl.Delete("42")
	f.ctl.Wait()

	assert.True(t, f.view.Raised(notify.SaveError))
	assert.Equal(t, []event.ID{"42"}, f.remote.deleted)
}

func TestReload_ReplacesList(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.remote.events = []event.Event{{ID: "1", Title: "Conf"}}
	f.ctl.Load(context.Background())
	f.ctl.Reload(context.Background())
	f.ctl.Wait()

	assert.Len(t, f.view.Items(), 1)
	assert.Equal(t, 2, f.remote.fetchCount())
}

func TestRun_ReloadsWhenBackOnline(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	f.remote.offline = true
	assert.Equal(t, syncer.OfflineNoData, f.ctl.Load(context.Background()))

	f.remote.setOffline(false)
	f.remote.mu.Lock()
	f.remote.events = []event.Event{{ID: "1", Title: "Conf"}}
	f.remote.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	online := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- f.ctl.Run(ctx, online) }()

	online <- struct{}{}
	require.Eventually(t, func() bool { return f.ctl.State() == syncer.Online }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, f.remote.fetchCount())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRun_StopsWhenSignalClosed(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	online := make(chan struct{})
	close(online)
	assert.NoError(t, f.ctl.Run(context.Background(), online))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "loading", syncer.Loading.String())
	assert.Equal(t, "offline-no-data", syncer.OfflineNoData.String())
	assert.Equal(t, "state(9)", syncer.State(9).String())
}

// slowStore delays every PutAll, the way a synced disk write would.
type slowStore struct{ *cache.Memory }

func (s slowStore) PutAll(ctx context.Context, events []event.Event) error {
	time.Sleep(2 * time.Millisecond)
	return s.Memory.PutAll(ctx, events)
}

func newSlowController(t *testing.T, remote *fakeRemote) (*syncer.Controller, *cache.Memory) {
	t.Helper()
	mem := cache.NewMemory()
	ctl := syncer.New(context.Background(), syncer.Deps{
		Store:  slowStore{mem},
		Meta:   mem,
		Remote: remote,
		View:   notify.NewTerminal(io.Discard),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, config.Default().Sync)
	t.Cleanup(ctl.Shutdown)
	return ctl, mem
}

func TestAddThenDelete_CacheWritesKeepOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		ctl, mem := newSlowController(t, &fakeRemote{})

		ev, err := ctl.Add(event.Draft{Title: "Meetup"})
		require.NoError(t, err)
		ctl.Delete(ev.ID)
		ctl.Wait()

		cached, err := mem.GetAll(context.Background())
		require.NoError(t, err)
		require.Empty(t, cached, "run %d: deleted event still cached", i)
	}
}

func TestLoadThenDelete_CacheWritesKeepOrder(t *testing.T) {
	for i := 0; i < 20; i++ {
		remote := &fakeRemote{events: []event.Event{{ID: "42", Title: "Gone"}, {ID: "43", Title: "Stays"}}}
		ctl, mem := newSlowController(t, remote)

		require.Equal(t, syncer.Online, ctl.Load(context.Background()))
		ctl.Delete("42")
		ctl.Wait()

		cached, err := mem.GetAll(context.Background())
		require.NoError(t, err)
		require.Equal(t, []event.Event{{ID: "43", Title: "Stays"}}, cached, "run %d", i)
	}
}
