// Package screen turns captured frames into indexed screen snapshots
package screen

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/screenlocator/internal/icons"
	"github.com/GriffinCanCode/screenlocator/internal/locator"
	"github.com/GriffinCanCode/screenlocator/internal/resilience"
	screencap "github.com/GriffinCanCode/screenlocator/internal/screen"
	"github.com/GriffinCanCode/screenlocator/internal/syncx"
)

// Snapshot is one decoded screen frame with its color index. It is
// immutable and may be shared by concurrent queries.
type Snapshot struct {
	ID      uint64
	TakenAt time.Time
	Image   image.Image
	Grid    *locator.Grid
	Index   *locator.ColorIndex
	Hash    *goimagehash.ImageHash
}

// Processor captures frames and publishes a new Snapshot whenever the
// screen changes.
type Processor struct {
	capturer screencap.Capturer
	breaker  *resilience.Breaker
	latest   *syncx.Latest[*Snapshot]
	seq      atomic.Uint64

	refreshMu  sync.Mutex // serialises capture and publication
	onSnapshot func(*Snapshot)
}

// NewProcessor creates a screen processor. onSnapshot, if non-nil, is called
// after each new snapshot is published.
func NewProcessor(capturer screencap.Capturer, onSnapshot func(*Snapshot)) *Processor {
	return &Processor{
		capturer:   capturer,
		breaker:    resilience.New(resilience.CaptureConfig()).WithHook(logCaptureState),
		latest:     syncx.NewLatest[*Snapshot](),
		onSnapshot: onSnapshot,
	}
}

func logCaptureState(from, to resilience.State) {
	switch to {
	case resilience.Open:
		slog.Warn("screen capture suspended after repeated failures", "retry_in", resilience.CaptureResetTimeout)
	case resilience.Closed:
		if from != resilience.Closed {
			slog.Info("screen capture recovered")
		}
	}
}

// Run refreshes the snapshot at captureRate Hz until ctx or stopCh ends.
func (p *Processor) Run(ctx context.Context, captureRate float64, stopCh <-chan struct{}) {
	interval := time.Duration(float64(time.Second) / captureRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if _, _, err := p.Refresh(ctx); err != nil {
				slog.Debug("screen refresh failed", "error", err, "breaker", p.breaker.State())
			}
		}
	}
}

// Initial takes the first snapshot, retrying transient capture failures.
func (p *Processor) Initial(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	cfg := resilience.SnapshotRetryConfig()
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		slog.Info("screen not ready, retrying", "attempt", attempt, "delay", delay, "error", err)
	}
	err := resilience.Retry(ctx, cfg, func() error {
		s, _, err := p.Refresh(ctx)
		snap = s
		return err
	})
	return snap, err
}

// Refresh captures a frame and, if it differs from the last one, decodes
// and indexes it. It returns the current snapshot and whether it is new.
func (p *Processor) Refresh(ctx context.Context) (*Snapshot, bool, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, changed, err := p.capture()
	if err != nil {
		return nil, false, err
	}
	current, _ := p.latest.Load()
	if !changed && current != nil {
		return current, false, nil
	}

	img, err := icons.DecodeBytes(data)
	if err != nil {
		return nil, false, err
	}
	grid := locator.FromImage(img)
	idx, err := locator.BuildIndex(grid)
	if err != nil {
		return nil, false, err
	}

	snap := &Snapshot{
		ID:      p.seq.Add(1),
		TakenAt: time.Now(),
		Image:   img,
		Grid:    grid,
		Index:   idx,
	}
	p.fingerprint(snap, current)

	p.latest.Store(snap)
	slog.Debug("screen snapshot published", "id", snap.ID, "width", grid.Width(), "height", grid.Height(), "colors", idx.Colors())
	if p.onSnapshot != nil {
		p.onSnapshot(snap)
	}
	return snap, true, nil
}

type frame struct {
	data    []byte
	changed bool
}

func (p *Processor) capture() ([]byte, bool, error) {
	f, err := resilience.Call(p.breaker, func() (frame, error) {
		data, changed, err := p.capturer.Capture()
		return frame{data: data, changed: changed}, err
	})
	return f.data, f.changed, err
}

// fingerprint computes the perceptual hash of snap and logs how far it moved
// from prev. Purely informational: any pixel change means a new index.
func (p *Processor) fingerprint(snap, prev *Snapshot) {
	hash, err := goimagehash.PerceptionHash(snap.Image)
	if err != nil {
		return
	}
	snap.Hash = hash
	if prev == nil || prev.Hash == nil {
		return
	}
	if dist, err := prev.Hash.Distance(hash); err == nil && dist <= MinorChangeDistance {
		slog.Debug("minor screen change", "distance", dist, "snapshot", snap.ID)
	}
}

// Current returns the latest snapshot, if any.
func (p *Processor) Current() (*Snapshot, bool) {
	snap, version := p.latest.Load()
	return snap, version > 0
}

// Ready is closed once the first snapshot is published.
func (p *Processor) Ready() <-chan struct{} {
	return p.latest.Ready()
}

// BreakerState reports the capture circuit breaker state.
func (p *Processor) BreakerState() resilience.State {
	return p.breaker.State()
}

// CaptureStats reports the capture circuit breaker counters.
func (p *Processor) CaptureStats() resilience.Stats {
	return p.breaker.Stats()
}
