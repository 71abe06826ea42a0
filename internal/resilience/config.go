package resilience

import (
	"context"
	"errors"
	"time"
)

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Screen capture: a missing screenshot tool fails every call, so trip
	// early and probe rarely.
	CaptureThreshold         = 3
	CaptureResetTimeout      = 15 * time.Second
	CaptureHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string        // used in logs and stats
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // wait before a half-open probe
	HalfOpenSuccesses int           // probe successes needed to close

	// IsFailure decides which errors count against the breaker.
	// Defaults to CountsAsFailure.
	IsFailure func(error) bool
}

// DefaultConfig returns general-purpose defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
		IsFailure:         CountsAsFailure,
	}
}

// CaptureConfig returns settings for guarding screen capture.
func CaptureConfig() Config {
	return Config{
		Name:              "screen-capture",
		Threshold:         CaptureThreshold,
		ResetTimeout:      CaptureResetTimeout,
		HalfOpenSuccesses: CaptureHalfOpenSuccesses,
		IsFailure:         CountsAsFailure,
	}
}

// CountsAsFailure treats every error as a failure except the caller giving
// up: a cancelled request says nothing about the guarded tool.
func CountsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	if c.IsFailure == nil {
		c.IsFailure = CountsAsFailure
	}
	return c
}
