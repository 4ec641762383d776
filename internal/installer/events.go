package installer

import (
	"time"

	"github.com/subforge/subforge/internal/acquire"
	"github.com/subforge/subforge/internal/catalog"
)

// EventType distinguishes install events.
type EventType string

const (
	EventStarted   EventType = "started"
	EventStrategy  EventType = "strategy"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event reports install progress. Every install ends with exactly one
// EventCompleted or EventFailed, after which the channel is closed.
type Event struct {
	// ID identifies the install operation.
	ID         string
	Type       EventType
	Dependency catalog.ID
	Strategy   string
	// Percent is 0-100, or -1 when unknown.
	Percent int
	Written int64
	Total   int64
	Message string
	Time    time.Time

	// Set on EventCompleted.
	Version string
	Path    string

	// Set on EventFailed.
	Err  error
	Kind acquire.Kind
	Hint string
}

// Terminal reports whether e ends an install.
func (e Event) Terminal() bool {
	return e.Type == EventCompleted || e.Type == EventFailed
}

// Clock stamps events.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock reports the same instant on every call.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
