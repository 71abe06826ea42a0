package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

// Retry configuration constants
const (
	DefaultMaxRetries   = 3
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultJitterFactor = 0.2 // +/-10% around the nominal delay

	// Initial snapshot: screenshot tools can be slow to come up after login
	SnapshotMaxRetries = 5
	SnapshotBaseDelay  = 250 * time.Millisecond
	SnapshotMaxDelay   = 5 * time.Second
)

// RetryConfig holds retry settings.
type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
	IsRetryable  func(error) bool

	// OnRetry, if set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns standard retry settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    DefaultBaseDelay,
		MaxDelay:     DefaultMaxDelay,
		JitterFactor: DefaultJitterFactor,
		IsRetryable:  IsRetryable,
	}
}

// SnapshotRetryConfig returns settings for taking the first screen snapshot.
func SnapshotRetryConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxRetries = SnapshotMaxRetries
	cfg.BaseDelay = SnapshotBaseDelay
	cfg.MaxDelay = SnapshotMaxDelay
	return cfg
}

// IsRetryable reports whether err is worth retrying. An open breaker is not:
// it already decided to fail fast.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrOpen) {
		return false
	}
	if _, ok := apperrors.As(err); ok {
		return apperrors.IsRetryable(err)
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		}
	}
	return false
}

// Retry calls fn until it succeeds, returns a permanent error, or runs out of
// attempts. The last error is returned unchanged.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || attempt == cfg.MaxRetries || !cfg.IsRetryable(err) {
			return err
		}

		delay := cfg.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// delay is the exponential backoff before retry attempt+1, capped at
// MaxDelay and spread by JitterFactor.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := min(c.BaseDelay<<min(attempt, 16), c.MaxDelay)
	if c.JitterFactor == 0 {
		return d
	}
	return d + time.Duration(float64(d)*c.JitterFactor*(rand.Float64()-0.5))
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.JitterFactor < 0 {
		c.JitterFactor = 0
	}
	if c.IsRetryable == nil {
		c.IsRetryable = IsRetryable
	}
	return c
}
