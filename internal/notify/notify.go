// Package notify is the presentation side of the client: it holds the rendered
// event list and the four sticky status banners.
package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gyaneshwarpardhi/dashboardr/internal/event"
)

// Kind identifies a status banner.
type Kind int

const (
	Offline Kind = iota
	NoData
	DataSaved
	SaveError
)

var kindNames = [...]string{"offline", "no-data", "data-saved", "save-error"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message returns the banner text for k. detail is the last successful fetch
// time, or empty when unknown.
func Message(k Kind, detail string) string {
	switch k {
	case Offline:
		msg := "You are offline, data may be outdated."
		if detail != "" {
			msg += " Last fetched server data: " + detail
		}
		return msg
	case NoData:
		return "No data is available yet. Connect to the network to load events."
	case DataSaved:
		msg := "Data saved for offline use"
		if detail != "" {
			msg += " on " + detail
		}
		return msg
	case SaveError:
		return "Data could not be saved for offline use."
	default:
		return k.String()
	}
}

// Presenter receives list updates and banners from the sync controller.
// Implementations must be safe for concurrent use.
type Presenter interface {
	Show(events []event.Event)
	Remove(id event.ID)
	Clear()
	Notify(kind Kind, detail string)
}

// Terminal keeps the list in display order and redraws it to w on every change.
type Terminal struct {
	mu      sync.Mutex
	w       io.Writer
	items   []event.Event
	banners map[Kind]string
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, banners: make(map[Kind]string)}
}

// Show appends events to the end of the list.
func (t *Terminal) Show(events []event.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, events...)
	t.render()
}

// Remove drops every item carrying id.
func (t *Terminal) Remove(id event.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.items[:0]
	for _, ev := range t.items {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	t.items = kept
	t.render()
}

// Clear empties the list. Banners are left alone.
func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
	t.render()
}

// Notify raises a banner. Raising it again only replaces its text.
func (t *Terminal) Notify(kind Kind, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banners[kind] = Message(kind, detail)
	t.render()
}

// Items returns a copy of the list as currently shown.
func (t *Terminal) Items() []event.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]event.Event(nil), t.items...)
}

// Raised reports whether the banner for kind is visible.
func (t *Terminal) Raised(kind Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.banners[kind]
	return ok
}

// render must be called with t.mu held.
func (t *Terminal) render() {
	var b strings.Builder
	b.WriteString("\n")
	for _, k := range []Kind{Offline, NoData, DataSaved, SaveError} {
		if msg, ok := t.banners[k]; ok {
			fmt.Fprintf(&b, "[%s] %s\n", k, msg)
		}
	}
	if len(t.items) == 0 {
		b.WriteString("(no events)\n")
	}
	for _, ev := range t.items {
		fmt.Fprintf(&b, "- %s\n    %s\n    %s\n    %s\n    id: %s\n", ev.Title, ev.Date, ev.City, ev.Note, ev.ID)
	}
	_, _ = io.WriteString(t.w, b.String())
}
