package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
)

// Memory is a process-local store. It does not survive restarts; eventsd and
// tests use it.
type Memory struct {
	mu     sync.RWMutex
	events map[event.ID]event.Event
	meta   map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		events: make(map[event.ID]event.Event),
		meta:   make(map[string]string),
	}
}

// PutAll checks the whole batch before touching the map so a rejected batch
// leaves nothing behind.
func (m *Memory) PutAll(ctx context.Context, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return writeErr(err)
	}
	for _, ev := range events {
		if ev.ID == "" {
			return writeErr(errMissingID)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		m.events[ev.ID] = ev
	}
	return nil
}

func (m *Memory) DeleteByID(ctx context.Context, id event.ID) error {
	if err := ctx.Err(); err != nil {
		return deleteErr(err)
	}
	if id == "" {
		return deleteErr(errMissingID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	return nil
}

func (m *Memory) GetAll(ctx context.Context) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]event.Event, 0, len(m.events))
	for _, ev := range m.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.meta[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }

// Noop is used when the host offers no persistent storage. Writes succeed
// without effect and reads come back empty.
type Noop struct{}

func (Noop) PutAll(context.Context, []event.Event) error { return nil }
func (Noop) DeleteByID(context.Context, event.ID) error { return nil }
func (Noop) GetAll(context.Context) ([]event.Event, error) { return nil, nil }
func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) Set(context.Context, string, string) error { return nil }
func (Noop) Close() error { return nil }
