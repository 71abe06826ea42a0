package orchestrator

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/screenlocator/internal/config"
	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
	"github.com/GriffinCanCode/screenlocator/internal/icons"
	"github.com/GriffinCanCode/screenlocator/internal/locator"
	"github.com/GriffinCanCode/screenlocator/internal/orchestrator/history"
	"github.com/GriffinCanCode/screenlocator/internal/resilience"
)

var (
	bg   = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

// fakeCapturer always serves the same PNG frame.
type fakeCapturer struct {
	mu     sync.Mutex
	frame  []byte
	calls  int
	closed bool
}

func (f *fakeCapturer) Capture() ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.frame, f.calls == 1, nil
}

func (f *fakeCapturer) CaptureAlways() ([]byte, error) { return f.frame, nil }

func (f *fakeCapturer) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

// testScreen is 4x3 with a red-blue pair at (1,1).
func testScreen() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, bg)
		}
	}
	img.SetNRGBA(1, 1, red)
	img.SetNRGBA(2, 1, blue)
	return img
}

func iconImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, red)
	img.SetNRGBA(1, 0, blue)
	return img
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestOrchestrator(t *testing.T, debug config.DebugConfig) (*Orchestrator, *fakeCapturer) {
	t.Helper()
	cfg := &config.Config{ScreenCaptureRate: 50, HistorySize: 10, Debug: debug}
	capturer := &fakeCapturer{frame: encode(t, testScreen())}
	registry := icons.NewRegistry()
	_, err := registry.Add("pair", iconImage())
	require.NoError(t, err)

	o := New(cfg, capturer, registry)
	t.Cleanup(o.Stop)
	return o, capturer
}

func drain(ch <-chan history.Event) []history.Event {
	var out []history.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestLocateWithoutSnapshot(t *testing.T) {
	o, _ := newTestOrchestrator(t, config.DebugConfig{})

	_, err := o.Locate(context.Background(), "pair")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUnavailable), "got %v", err)

	_, ok := o.Snapshot()
	assert.False(t, ok)
}

func TestLocateRegisteredIcon(t *testing.T) {
	o, _ := newTestOrchestrator(t, config.DebugConfig{})
	ctx := context.Background()

	info, err := o.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.ID)
	assert.Equal(t, 4, info.Width)
	assert.Equal(t, 3, info.Height)
	assert.Equal(t, 3, info.Colors)
	assert.Equal(t, resilience.Closed, o.CaptureStats().State)

	res, err := o.Locate(ctx, "pair")
	require.NoError(t, err)
	assert.Equal(t, "pair", res.Icon)
	assert.Equal(t, uint64(1), res.Snapshot)
	assert.Equal(t, []locator.Point{{X: 1, Y: 1}}, res.Anchors)
	assert.Equal(t, locator.Complete, res.State)
	assert.NotEmpty(t, res.TraceID)

	hist := o.History("", 0)
	require.Len(t, hist, 1)
	assert.Equal(t, "pair", hist[0].Icon)
	assert.Equal(t, res.Anchors, hist[0].Matches)
	assert.Equal(t, res.TraceID, hist[0].TraceID)
	assert.Len(t, o.History("pair", 5), 1)
	assert.Empty(t, o.History("other", 5))

	events := drain(o.Events())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, history.EventMatch, last.Type)
	for _, e := range events[:len(events)-1] {
		assert.Equal(t, history.EventStep, e.Type)
		assert.Equal(t, "pair", e.Step.Icon)
	}
	assert.Equal(t, locator.Complete, events[len(events)-2].Step.State)
}

func TestLocateUnknownIcon(t *testing.T) {
	o, _ := newTestOrchestrator(t, config.DebugConfig{})
	_, err := o.Refresh(context.Background())
	require.NoError(t, err)

	_, err = o.Locate(context.Background(), "missing")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestLocateImage(t *testing.T) {
	o, _ := newTestOrchestrator(t, config.DebugConfig{})
	ctx := context.Background()
	_, err := o.Refresh(ctx)
	require.NoError(t, err)

	absent := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	absent.SetNRGBA(0, 0, color.NRGBA{G: 255, A: 255})
	res, err := o.LocateImage(ctx, "", absent)
	require.NoError(t, err)
	assert.Equal(t, InlineIconName, res.Icon)
	assert.Empty(t, res.Anchors)
	assert.NotNil(t, res.Anchors)
	assert.Equal(t, locator.Exhausted, res.State)

	_, err = o.LocateImage(ctx, "empty", image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "got %v", err)
}

func TestIconManagement(t *testing.T) {
	o, _ := newTestOrchestrator(t, config.DebugConfig{})

	_, err := o.AddIcon("dot", image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)

	names := make([]string, 0)
	for _, info := range o.Icons() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"dot", "pair"}, names)

	require.NoError(t, o.RemoveIcon("dot"))
	err = o.RemoveIcon("dot")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestDebugFramesWritten(t *testing.T) {
	dir := t.TempDir()
	o, _ := newTestOrchestrator(t, config.DebugConfig{Enabled: true, Directory: dir})
	ctx := context.Background()

	_, err := o.Refresh(ctx)
	require.NoError(t, err)
	_, err = o.Locate(ctx, "pair")
	require.NoError(t, err)
	o.Stop()

	var frames []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			frames = append(frames, path)
		}
		return err
	})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	// final frame sits at the last icon offset
	assert.Equal(t, "1.png", filepath.Base(frames[0]))
}

func TestStartPublishesSnapshot(t *testing.T) {
	o, capturer := newTestOrchestrator(t, config.DebugConfig{})

	require.NoError(t, o.Start(context.Background()))
	select {
	case <-o.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot after Start")
	}

	info, ok := o.Snapshot()
	require.True(t, ok)
	assert.Equal(t, uint64(1), info.ID)

	o.Stop()
	o.Stop()
	capturer.mu.Lock()
	defer capturer.mu.Unlock()
	assert.True(t, capturer.closed)
}
