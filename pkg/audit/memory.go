package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage implements Storage with an in-memory slice.
// Events are lost on restart; use it for tests and single-run tooling.
type MemoryStorage struct {
	events []*Event
	closed bool
	mu     sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Store appends a copy of the event.
func (s *MemoryStorage) Store(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewStorageError("memory", "store", ErrClosed)
	}

	eventCopy := *event
	s.events = append(s.events, &eventCopy)
	return nil
}

// Query returns copies of matching events, newest first.
func (s *MemoryStorage) Query(ctx context.Context, filter Filter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, NewStorageError("memory", "query", ErrClosed)
	}

	var results []*Event
	for _, e := range s.events {
		if filter.Matches(e) {
			eventCopy := *e
			results = append(results, &eventCopy)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Time.After(results[j].Time)
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Count returns the number of matching events.
func (s *MemoryStorage) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, NewStorageError("memory", "count", ErrClosed)
	}

	var n int64
	for _, e := range s.events {
		if filter.Matches(e) {
			n++
		}
	}
	return n, nil
}

// Prune removes events older than before.
func (s *MemoryStorage) Prune(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, NewStorageError("memory", "prune", ErrClosed)
	}

	kept := s.events[:0]
	for _, e := range s.events {
		if !e.Time.Before(before) {
			kept = append(kept, e)
		}
	}
	removed := int64(len(s.events) - len(kept))
	clear(s.events[len(kept):])
	s.events = kept
	return removed, nil
}

// Ping reports ErrClosed after Close.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return NewStorageError("memory", "ping", ErrClosed)
	}
	return nil
}

// Close marks the storage closed.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.events = nil
	return nil
}
