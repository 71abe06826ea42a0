// Package resilience guards flaky collaborators, such as external screenshot
// tools, with a circuit breaker and retry with backoff.
package resilience

import (
	"log/slog"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

// State represents circuit breaker state
type State uint32

const (
	Closed   State = iota // calls pass through
	Open                  // calls fail fast with ErrOpen
	HalfOpen              // probing whether the collaborator recovered
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrOpen is returned while the breaker is failing fast.
var ErrOpen = apperrors.New(apperrors.CodeUnavailable, "circuit breaker open")

// Stats is a point-in-time view of a breaker.
type Stats struct {
	Name        string    `json:"name"`
	State       State     `json:"state"`
	Failures    int       `json:"failures"` // consecutive
	Trips       uint64    `json:"trips"`    // times opened since start
	LastFailure time.Time `json:"last_failure,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
}

// Breaker is a lock-free circuit breaker.
type Breaker struct {
	cfg Config
	now func() time.Time

	state       atomic.Uint32
	failures    atomic.Int32
	successes   atomic.Int32
	trips       atomic.Uint64
	lastFailure atomic.Int64 // unix nano
	lastErr     atomic.Value // string

	onStateChange func(from, to State)
}

// New creates a closed breaker.
func New(cfg Config) *Breaker {
	b := &Breaker{cfg: cfg.withDefaults(), now: time.Now}
	b.state.Store(uint32(Closed))
	return b
}

// WithHook sets a callback run after every state change. It must be set
// before the breaker is shared.
func (b *Breaker) WithHook(fn func(from, to State)) *Breaker {
	b.onStateChange = fn
	return b
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// Allow returns nil when a call may proceed. An open breaker lets a single
// probe through once the reset timeout has passed.
func (b *Breaker) Allow() error {
	if State(b.state.Load()) != Open {
		return nil
	}
	if b.resetDue() && b.state.CompareAndSwap(uint32(Open), uint32(HalfOpen)) {
		b.changed(Open, HalfOpen)
		return nil
	}
	return ErrOpen
}

// Record feeds a call outcome into the breaker and returns err unchanged.
func (b *Breaker) Record(err error) error {
	switch {
	case err == nil:
		b.Success()
	case b.cfg.IsFailure(err):
		b.Failure(err)
	}
	return err
}

// Success records a successful call.
func (b *Breaker) Success() {
	switch State(b.state.Load()) {
	case HalfOpen:
		if b.successes.Add(1) >= int32(b.cfg.HalfOpenSuccesses) {
			b.transition(Closed)
		}
	case Closed:
		b.failures.Store(0)
	}
}

// Failure records a failed call.
func (b *Breaker) Failure(err error) {
	b.lastFailure.Store(b.now().UnixNano())
	if err != nil {
		b.lastErr.Store(err.Error())
	}
	count := b.failures.Add(1)

	switch State(b.state.Load()) {
	case HalfOpen:
		b.transition(Open)
	case Closed:
		if count >= int32(b.cfg.Threshold) {
			b.transition(Open)
		}
	}
}

// State returns current state
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// Stats returns counters for health reporting.
func (b *Breaker) Stats() Stats {
	s := Stats{
		Name:     b.cfg.Name,
		State:    b.State(),
		Failures: int(b.failures.Load()),
		Trips:    b.trips.Load(),
	}
	if last := b.lastFailure.Load(); last != 0 {
		s.LastFailure = time.Unix(0, last)
	}
	if msg, ok := b.lastErr.Load().(string); ok {
		s.LastError = msg
	}
	return s
}

// Reset forces breaker to closed state
func (b *Breaker) Reset() {
	b.transition(Closed)
}

func (b *Breaker) transition(to State) {
	from := State(b.state.Swap(uint32(to)))
	if from == to {
		return
	}
	b.changed(from, to)
}

func (b *Breaker) changed(from, to State) {
	switch to {
	case Closed:
		b.failures.Store(0)
		b.successes.Store(0)
	case Open:
		b.successes.Store(0)
		b.trips.Add(1)
	case HalfOpen:
		b.successes.Store(0)
	}
	slog.Debug("circuit breaker state changed", "name", b.cfg.Name, "from", from, "to", to, "failures", b.failures.Load())

	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

func (b *Breaker) resetDue() bool {
	last := b.lastFailure.Load()
	if last == 0 {
		return true
	}
	return b.now().Sub(time.Unix(0, last)) > b.cfg.ResetTimeout
}

// Call runs fn under b's protection and returns its result. Failed calls
// yield the zero value.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	result, err := fn()
	if b.Record(err) != nil {
		return zero, err
	}
	return result, nil
}
