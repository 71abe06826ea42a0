//go:build linux

package screen

import (
	"log/slog"
	"os/exec"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

type linuxBackend struct{ tempDir string }

// Try gnome-screenshot first, fall back to scrot
func (l *linuxBackend) captureRaw() ([]byte, error) {
	out := tempShot(l.tempDir)
	if _, err := exec.LookPath("gnome-screenshot"); err == nil {
		return runTool(out, "gnome-screenshot", "-f", out)
	}
	if _, err := exec.LookPath("scrot"); err == nil {
		return runTool(out, "scrot", "-o", out)
	}
	return nil, apperrors.New(apperrors.CodeCaptureFailed, "no screenshot tool found (install gnome-screenshot or scrot)")
}

func (l *linuxBackend) cleanup() {}

// New creates a platform-specific screen capturer
func New() Capturer {
	tmpDir, err := makeTempDir()
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
	}
	return newBase(&linuxBackend{tempDir: tmpDir}, tmpDir)
}
