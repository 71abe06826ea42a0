package screen

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

type fakeBackend struct {
	frames  [][]byte
	err     error
	calls   int
	cleaned bool
}

func (f *fakeBackend) captureRaw() ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	frame := f.frames[min(f.calls, len(f.frames)-1)]
	f.calls++
	return frame, nil
}

func (f *fakeBackend) cleanup() { f.cleaned = true }

func TestCaptureChangeDetection(t *testing.T) {
	b := &fakeBackend{frames: [][]byte{[]byte("frame-a"), []byte("frame-a"), []byte("frame-b")}}
	c := newBase(b, "")

	data, changed, err := c.Capture()
	if err != nil || !changed || string(data) != "frame-a" {
		t.Fatalf("first Capture() = %q, %v, %v", data, changed, err)
	}

	data, changed, err = c.Capture()
	if err != nil || changed {
		t.Errorf("identical frame should report no change, got changed=%v err=%v", changed, err)
	}
	if string(data) != "frame-a" {
		t.Errorf("unchanged capture should still return data, got %q", data)
	}

	_, changed, _ = c.Capture()
	if !changed {
		t.Error("different frame should report change")
	}
}

// Frames that share a long prefix must still count as changed.
func TestCaptureHashesWholeFrame(t *testing.T) {
	prefix := make([]byte, 8192)
	a := append(append([]byte{}, prefix...), 1)
	b := append(append([]byte{}, prefix...), 2)
	c := newBase(&fakeBackend{frames: [][]byte{a, b}}, "")

	c.Capture()
	if _, changed, _ := c.Capture(); !changed {
		t.Error("tail-only difference should be detected")
	}
}

func TestCaptureAlwaysUpdatesHash(t *testing.T) {
	c := newBase(&fakeBackend{frames: [][]byte{[]byte("x")}}, "")

	if data, err := c.CaptureAlways(); err != nil || string(data) != "x" {
		t.Fatalf("CaptureAlways() = %q, %v", data, err)
	}
	if _, changed, _ := c.Capture(); changed {
		t.Error("Capture after CaptureAlways of same frame should report no change")
	}
}

func TestCaptureError(t *testing.T) {
	boom := apperrors.New(apperrors.CodeCaptureFailed, "no tool")
	c := newBase(&fakeBackend{err: boom}, "")

	data, changed, err := c.Capture()
	if !errors.Is(err, boom) || data != nil || changed {
		t.Errorf("Capture() = %v, %v, %v", data, changed, err)
	}
	if _, err := c.CaptureAlways(); !errors.Is(err, boom) {
		t.Errorf("CaptureAlways() err = %v", err)
	}
}

func TestCloseRemovesTempDir(t *testing.T) {
	dir, err := makeTempDir()
	if err != nil {
		t.Fatal(err)
	}
	b := &fakeBackend{frames: [][]byte{nil}}
	c := newBase(b, dir)
	c.Close()

	if !b.cleaned {
		t.Error("backend cleanup should run")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("temp directory should be removed after Close")
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screen.png")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := NewFromFile(path)
	defer c.Close()

	if data, changed, err := c.Capture(); err != nil || !changed || string(data) != "one" {
		t.Fatalf("Capture() = %q, %v, %v", data, changed, err)
	}

	if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	if data, changed, _ := c.Capture(); !changed || string(data) != "two" {
		t.Errorf("rewritten file should be a new frame, got %q changed=%v", data, changed)
	}
}

func TestFileSourceMissing(t *testing.T) {
	c := NewFromFile(filepath.Join(t.TempDir(), "missing.png"))
	_, _, err := c.Capture()
	if !apperrors.IsCode(err, apperrors.CodeCaptureFailed) {
		t.Errorf("err = %v, want CAPTURE_FAILED", err)
	}
	if !apperrors.IsRetryable(err) {
		t.Error("capture failures should be retryable")
	}
}

func TestTempShotPath(t *testing.T) {
	dir, err := makeTempDir()
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	if p := tempShot(dir); !filepath.IsAbs(p) || filepath.Base(p) != screenshotFile {
		t.Errorf("tempShot = %q", p)
	}
}

// Integration test - only runs where a native capture tool exists
func TestCaptureIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if os.Getenv("SCREENLOCATOR_CAPTURE_IT") == "" {
		t.Skip("set SCREENLOCATOR_CAPTURE_IT to exercise native capture")
	}

	c := New()
	defer c.Close()

	data, changed, err := c.Capture()
	if err != nil {
		t.Logf("capture failed (may be permission issue): %v", err)
		return
	}
	if !changed || len(data) == 0 {
		t.Error("first capture should return a changed frame")
	}
}
