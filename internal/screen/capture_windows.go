//go:build windows

package screen

import (
	"log/slog"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

type windowsBackend struct{}

// TODO: Implement using Windows GDI BitBlt into a DIB section
func (w *windowsBackend) captureRaw() ([]byte, error) {
	return nil, apperrors.New(apperrors.CodeCaptureFailed, "windows screen capture not implemented; set SCREEN_SOURCE")
}

func (w *windowsBackend) cleanup() {}

// New creates a platform-specific screen capturer
func New() Capturer {
	slog.Warn("native screen capture unavailable on windows")
	return newBase(&windowsBackend{}, "")
}
