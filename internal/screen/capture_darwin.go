//go:build darwin

package screen

import "log/slog"

type darwinBackend struct{ tempDir string }

// -x: no sound, -t png: lossless, -m: main display only
func (d *darwinBackend) captureRaw() ([]byte, error) {
	out := tempShot(d.tempDir)
	return runTool(out, "screencapture", "-x", "-t", "png", "-m", out)
}

func (d *darwinBackend) cleanup() {}

// New creates a platform-specific screen capturer
func New() Capturer {
	tmpDir, err := makeTempDir()
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
	}
	return newBase(&darwinBackend{tempDir: tmpDir}, tmpDir)
}
