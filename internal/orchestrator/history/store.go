// Package history keeps recent locate results and fans out live events
package history

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/screenlocator/internal/locator"
)

// EventType distinguishes live events.
type EventType string

const (
	EventStep  EventType = "step"
	EventMatch EventType = "match"
)

// Event is a live notification for subscribers such as WebSocket clients.
type Event struct {
	Type  EventType
	Step  *locator.Step
	Entry *Entry
}

// Entry represents a stored locate result.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	TraceID   string          `json:"trace_id,omitempty"`
	Icon      string          `json:"icon"`
	Snapshot  uint64          `json:"snapshot"`
	Matches   []locator.Point `json:"matches"`
	State     locator.State   `json:"state"`
	Examined  int             `json:"examined"`
	Duration  time.Duration   `json:"duration_ns"`
}

// Store interface for history operations.
type Store interface {
	Add(e Entry)
	Recent(n int) []Entry
	Events() <-chan Event
	Emit(event Event)
}

// MemoryStore implements bounded in-memory history.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	maxSize  int
	eventsCh chan Event
	dropped  uint64
}

// NewStore creates a new history store.
func NewStore(maxEntries, eventBuffer int) *MemoryStore {
	return &MemoryStore{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add records a result, evicting the oldest beyond the size limit.
func (s *MemoryStore) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (s *MemoryStore) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// ForIcon returns stored results for one icon, newest first.
func (s *MemoryStore) ForIcon(icon string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Icon == icon {
			out = append(out, s.entries[i])
		}
	}
	return out
}

// Events returns the channel for live events.
func (s *MemoryStore) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends an event (non-blocking). Events are dropped while no one keeps
// up with the channel.
func (s *MemoryStore) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

// Dropped returns how many events were discarded.
func (s *MemoryStore) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}
