package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit event.
type Kind string

const (
	// KindDenied records a request refused by a limiter.
	KindDenied Kind = "denied"

	// KindReset records an administrative or scheduled limiter reset.
	KindReset Kind = "reset"

	// KindReload records a configuration reload.
	KindReload Kind = "reload"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDenied, KindReset, KindReload:
		return true
	}
	return false
}

// Event is a single journal entry.
type Event struct {
	// ID is a unique identifier (UUID v4).
	ID string `json:"id"`

	// Time is when the event happened.
	Time time.Time `json:"time"`

	// Limiter is the name of the limiter involved. Empty for reloads.
	Limiter string `json:"limiter,omitempty"`

	// Kind classifies the event.
	Kind Kind `json:"kind"`

	// WaitMs is the advised retry delay of a denial, in milliseconds.
	WaitMs uint64 `json:"wait_ms,omitempty"`

	// RequestID correlates the event with an HTTP request.
	RequestID string `json:"request_id,omitempty"`

	// Detail carries free-form context, such as the reset trigger.
	Detail string `json:"detail,omitempty"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(kind Kind, limiter string) *Event {
	return &Event{
		ID:      uuid.New().String(),
		Time:    time.Now().UTC(),
		Limiter: limiter,
		Kind:    kind,
	}
}

// Filter selects events for Query and Count. Zero fields match everything.
type Filter struct {
	Limiter string
	Kind    Kind
	Since   time.Time
	Until   time.Time

	// Limit caps the number of events returned by Query. 0 means no limit.
	Limit int
}

// Matches reports whether e satisfies the filter, ignoring Limit.
func (f Filter) Matches(e *Event) bool {
	if f.Limiter != "" && e.Limiter != f.Limiter {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Time.Before(f.Until) {
		return false
	}
	return true
}

// Storage persists audit events.
//
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a single event.
	Store(ctx context.Context, event *Event) error

	// Query returns matching events, newest first.
	Query(ctx context.Context, filter Filter) ([]*Event, error)

	// Count returns the number of matching events.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Prune deletes events older than before and returns how many were removed.
	Prune(ctx context.Context, before time.Time) (int64, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}
