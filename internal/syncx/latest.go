// Package syncx provides extended synchronization primitives
package syncx

import "sync"

// Latest holds the most recent value of T together with a version that
// increases on every Store. Readers keep whatever value they loaded even
// after it is replaced.
type Latest[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	ready   chan struct{}
}

// NewLatest creates an empty holder at version 0.
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{ready: make(chan struct{})}
}

// Load returns the current value and its version. Version 0 means nothing
// has been stored yet.
func (l *Latest[T]) Load() (T, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value, l.version
}

// Store replaces the value and returns the new version.
func (l *Latest[T]) Store(v T) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.value = v
	l.version++
	if l.version == 1 {
		close(l.ready)
	}
	return l.version
}

// Ready is closed once the first value is stored.
func (l *Latest[T]) Ready() <-chan struct{} {
	return l.ready
}
