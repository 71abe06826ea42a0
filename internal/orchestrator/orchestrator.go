// Package orchestrator coordinates screen snapshots, icons, and searches
package orchestrator

import (
	"context"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/screenlocator/internal/config"
	"github.com/GriffinCanCode/screenlocator/internal/debugframe"
	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
	"github.com/GriffinCanCode/screenlocator/internal/icons"
	"github.com/GriffinCanCode/screenlocator/internal/locator"
	"github.com/GriffinCanCode/screenlocator/internal/orchestrator/history"
	"github.com/GriffinCanCode/screenlocator/internal/orchestrator/screen"
	"github.com/GriffinCanCode/screenlocator/internal/resilience"
	screencap "github.com/GriffinCanCode/screenlocator/internal/screen"
	"github.com/GriffinCanCode/screenlocator/internal/trace"
)

// LocateResult is the outcome of locating one icon on one snapshot.
type LocateResult struct {
	Icon     string `json:"icon"`
	Snapshot uint64 `json:"snapshot"`
	TraceID  string `json:"trace_id,omitempty"`
	locator.Result
}

// SnapshotInfo describes the current screen snapshot.
type SnapshotInfo struct {
	ID      uint64    `json:"id"`
	TakenAt time.Time `json:"taken_at"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Colors  int       `json:"colors"`
	Hash    string    `json:"hash,omitempty"`
}

// Orchestrator coordinates all services
type Orchestrator struct {
	cfg        *config.Config
	capturer   screencap.Capturer
	screenProc *screen.Processor
	icons      *icons.Registry
	history    *history.MemoryStore

	// frame writer bound to the snapshot it renders over
	framesMu   sync.Mutex
	frames     *debugframe.Writer
	framesSnap uint64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates an orchestrator over capturer and registry.
func New(cfg *config.Config, capturer screencap.Capturer, registry *icons.Registry) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		capturer: capturer,
		icons:    registry,
		history:  history.NewStore(cfg.HistorySize, EventBuffer),
		stopCh:   make(chan struct{}),
	}
	o.screenProc = screen.NewProcessor(capturer, o.handleSnapshot)
	return o
}

// handleSnapshot rebinds the debug frame writer to a freshly published snapshot.
func (o *Orchestrator) handleSnapshot(snap *screen.Snapshot) {
	if !o.cfg.Debug.Enabled {
		return
	}
	w := debugframe.New(o.cfg.Debug, snap.Image)

	o.framesMu.Lock()
	old := o.frames
	o.frames, o.framesSnap = w, snap.ID
	o.framesMu.Unlock()

	if old != nil {
		go old.Close()
	}
}

// framesFor returns the frame writer for snap, or nil when frames are off or
// snap has already been replaced.
func (o *Orchestrator) framesFor(snap *screen.Snapshot) *debugframe.Writer {
	o.framesMu.Lock()
	defer o.framesMu.Unlock()
	if o.frames == nil || o.framesSnap != snap.ID {
		return nil
	}
	return o.frames
}

// Start takes the first snapshot and keeps refreshing it in the background.
func (o *Orchestrator) Start(ctx context.Context) error {
	go func() {
		log := trace.Logger(ctx)
		if _, err := o.screenProc.Initial(ctx); err != nil {
			log.Warn("initial screen snapshot failed", "error", err)
		}
		o.screenProc.Run(ctx, o.cfg.ScreenCaptureRate, o.stopCh)
	}()
	return nil
}

// Stop ends the refresh loop and flushes pending debug frames.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopCh)

		o.framesMu.Lock()
		w := o.frames
		o.frames = nil
		o.framesMu.Unlock()
		if w != nil {
			w.Close()
		}
		o.capturer.Close()
	})
}

// Ready is closed once the first snapshot exists.
func (o *Orchestrator) Ready() <-chan struct{} {
	return o.screenProc.Ready()
}

// Snapshot describes the current snapshot, if any.
func (o *Orchestrator) Snapshot() (SnapshotInfo, bool) {
	snap, ok := o.screenProc.Current()
	if !ok {
		return SnapshotInfo{}, false
	}
	return snapshotInfo(snap), true
}

// CaptureStats reports the screen capture circuit breaker.
func (o *Orchestrator) CaptureStats() resilience.Stats {
	return o.screenProc.CaptureStats()
}

// Refresh captures the screen now and returns the resulting snapshot.
func (o *Orchestrator) Refresh(ctx context.Context) (SnapshotInfo, error) {
	ctx, span := trace.StartSpan(ctx, "refresh_snapshot")
	defer span.End()

	snap, fresh, err := o.screenProc.Refresh(ctx)
	if err != nil {
		span.Fail(err)
		trace.Logger(ctx).Warn("screen refresh failed", "error", err, "breaker", o.screenProc.BreakerState())
		return SnapshotInfo{}, err
	}
	span.SetAttr("fresh", fresh)
	return snapshotInfo(snap), nil
}

func snapshotInfo(snap *screen.Snapshot) SnapshotInfo {
	info := SnapshotInfo{
		ID:      snap.ID,
		TakenAt: snap.TakenAt,
		Width:   snap.Grid.Width(),
		Height:  snap.Grid.Height(),
		Colors:  snap.Index.Colors(),
	}
	if snap.Hash != nil {
		info.Hash = snap.Hash.ToString()
	}
	return info
}

// Icons lists the registered icons.
func (o *Orchestrator) Icons() []icons.Info {
	return o.icons.List()
}

// AddIcon registers img under name.
func (o *Orchestrator) AddIcon(name string, img image.Image) (icons.Info, error) {
	return o.icons.Add(name, img)
}

// RemoveIcon unregisters name.
func (o *Orchestrator) RemoveIcon(name string) error {
	if !o.icons.Remove(name) {
		return apperrors.New(apperrors.CodeNotFound, "unknown icon").WithMetadata("icon", name)
	}
	return nil
}

// History returns up to n recent results, newest first. A non-empty icon
// restricts the results to that icon.
func (o *Orchestrator) History(icon string, n int) []history.Entry {
	if n <= 0 {
		n = DefaultHistoryLimit
	}
	if icon == "" {
		return o.history.Recent(n)
	}
	entries := o.history.ForIcon(icon)
	if len(entries) > n {
		entries = entries[:n]
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	return entries
}

// Events returns the live step and match events.
func (o *Orchestrator) Events() <-chan history.Event {
	return o.history.Events()
}

// Locate finds every occurrence of the registered icon name on the current
// snapshot. An icon that is not on screen yields an empty result.
func (o *Orchestrator) Locate(ctx context.Context, name string) (LocateResult, error) {
	icon, ok := o.icons.Get(name)
	if !ok {
		return LocateResult{}, apperrors.New(apperrors.CodeNotFound, "unknown icon").WithMetadata("icon", name)
	}
	return o.locate(ctx, icon)
}

// LocateImage finds every occurrence of img on the current snapshot.
func (o *Orchestrator) LocateImage(ctx context.Context, name string, img image.Image) (LocateResult, error) {
	if name = strings.TrimSpace(name); name == "" {
		name = InlineIconName
	}
	return o.locate(ctx, locator.Icon{Name: name, Grid: locator.FromImage(img)})
}

func (o *Orchestrator) locate(ctx context.Context, icon locator.Icon) (LocateResult, error) {
	ctx, span := trace.StartSpan(ctx, "locate")
	defer span.End()
	span.SetAttr("icon", icon.Name)
	log := trace.Logger(ctx)

	snap, ok := o.screenProc.Current()
	if !ok {
		return LocateResult{}, apperrors.New(apperrors.CodeUnavailable, "no screen snapshot yet")
	}
	span.SetAttr("snapshot", snap.ID)

	// frames are optional; a nil writer must not become a non-nil Observer
	observers := []locator.Observer{locator.ObserverFunc(o.emitStep)}
	if w := o.framesFor(snap); w != nil {
		observers = append(observers, w)
	}
	m := locator.NewMatcher(snap.Index,
		locator.WithObserver(locator.Observers(observers...)),
		locator.WithLogger(log))

	start := time.Now()
	res, err := m.Search(icon)
	if err != nil {
		span.Fail(err)
		return LocateResult{}, err
	}
	elapsed := time.Since(start)

	entry := history.Entry{
		TraceID:  span.Ctx.TraceID,
		Icon:     icon.Name,
		Snapshot: snap.ID,
		Matches:  res.Anchors,
		State:    res.State,
		Examined: res.Examined,
		Duration: elapsed,
	}
	o.history.Add(entry)
	o.history.Emit(history.Event{Type: history.EventMatch, Entry: &entry})

	span.SetAttr("matches", len(res.Anchors))
	log.Info("icon located", "icon", icon.Name, "snapshot", snap.ID, "matches", len(res.Anchors),
		"state", res.State, "duration", elapsed)

	return LocateResult{Icon: icon.Name, Snapshot: snap.ID, TraceID: span.Ctx.TraceID, Result: res}, nil
}

func (o *Orchestrator) emitStep(s locator.Step) {
	o.history.Emit(history.Event{Type: history.EventStep, Step: &s})
}
