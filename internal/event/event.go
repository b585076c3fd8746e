package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDraft is returned when a user-entered event cannot be created.
var ErrInvalidDraft = errors.New("invalid event draft")

// ID identifies an event. Client-generated ids are millisecond timestamps and
// travel as JSON numbers; server-supplied ids are opaque strings.
type ID string

// NewID returns a timestamp-derived id for t.
func NewID(t time.Time) ID {
	return ID(strconv.FormatInt(t.UnixMilli(), 10))
}

func (id ID) String() string { return string(id) }

// numeric reports whether id is a canonical non-negative integer.
func (id ID) numeric() bool {
	s := string(id)
	if s == "" || len(s) > 15 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MarshalJSON encodes canonical integers as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts either a JSON string or a JSON number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("event id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("event id: expected string or number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

// Event is a single calendar item shown in the list.
type Event struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
	City  string `json:"city"`
	Note  string `json:"note"`
}

// Draft is the add-event form before an id is assigned.
type Draft struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	City  string `json:"city"`
	Note  string `json:"note"`
}

// Validate requires a non-blank title; the other fields are free text.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDraft)
	}
	return nil
}

// Build turns the draft into an Event with an id derived from now.
func (d Draft) Build(now time.Time) Event {
	return Event{
		ID:    NewID(now),
		Title: d.Title,
		Date:  d.Date,
		City:  d.City,
		Note:  d.Note,
	}
}
