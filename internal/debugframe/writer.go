// Package debugframe persists search steps as PNG frames with the remaining
// candidate anchors highlighted on a copy of the screen.
package debugframe

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/screenlocator/internal/config"
	"github.com/GriffinCanCode/screenlocator/internal/locator"
)

// DefaultQueueSize bounds the number of frames waiting to be written.
const DefaultQueueSize = 64

// Highlight marks candidate anchors.
var Highlight = color.NRGBA{R: 255, G: 0, B: 255, A: 255}

type frame struct {
	path       string
	candidates []locator.Point
}

// Writer is a locator.Observer that writes frames on a background goroutine.
// Write failures are logged and never reach the search.
type Writer struct {
	cfg    config.DebugConfig
	screen image.Image

	mu     sync.RWMutex
	closed bool
	queue  chan frame
	wg     sync.WaitGroup

	written atomic.Int64
	dropped atomic.Int64
}

// New creates a writer for frames over screen. A disabled config yields a
// writer that ignores every step.
func New(cfg config.DebugConfig, screen image.Image) *Writer {
	w := &Writer{cfg: cfg, screen: screen}
	if !cfg.Enabled {
		return w
	}
	w.queue = make(chan frame, DefaultQueueSize)
	w.wg.Add(1)
	go w.run()
	return w
}

// Observe queues a frame for s when the config asks for it. Non-verbose
// writers only keep the final frame of a successful search.
func (w *Writer) Observe(s locator.Step) {
	if !w.cfg.Enabled || s.Remaining == 0 {
		return
	}
	if !w.cfg.Verbose && s.State != locator.Complete {
		return
	}

	f := frame{
		path:       filepath.Join(w.cfg.Directory, s.Query+"-"+safeName(s.Icon), strconv.Itoa(s.Offset)+".png"),
		candidates: s.Candidates,
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- f:
	default:
		w.dropped.Add(1)
		slog.Warn("debug frame queue full, dropping frame", "path", f.path)
	}
}

// Close flushes queued frames and stops the writer.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed || w.queue == nil {
		w.closed = true
		w.mu.Unlock()
		return
	}
	w.closed = true
	close(w.queue)
	w.mu.Unlock()
	w.wg.Wait()
}

// Written returns the number of frames persisted so far.
func (w *Writer) Written() int64 { return w.written.Load() }

// Dropped returns the number of frames discarded because the queue was full.
func (w *Writer) Dropped() int64 { return w.dropped.Load() }

func (w *Writer) run() {
	defer w.wg.Done()
	for f := range w.queue {
		if err := w.write(f); err != nil {
			slog.Error("failed to write debug frame", "path", f.path, "error", err)
			continue
		}
		w.written.Add(1)
	}
}

func (w *Writer) write(f frame) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(f.path)
	if err != nil {
		return err
	}
	if err := png.Encode(out, Render(w.screen, f.candidates)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Render copies screen and paints every candidate anchor in Highlight.
// Candidates are relative to the screen's top-left corner.
func Render(screen image.Image, candidates []locator.Point) *image.NRGBA {
	b := screen.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), screen, b.Min, draw.Src)
	for _, p := range candidates {
		img.SetNRGBA(p.X, p.Y, Highlight)
	}
	return img
}

// safeName keeps icon names usable as a single path element.
func safeName(name string) string {
	if name == "" {
		return "icon"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, name)
}
