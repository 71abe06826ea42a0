package screen

import (
	"os"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

// fileBackend re-reads a fixed image file on every capture. Replacing the
// file on disk acts as a new frame.
type fileBackend struct{ path string }

func (f *fileBackend) captureRaw() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "failed to read screen source").
			WithMetadata("path", f.path)
	}
	return data, nil
}

func (f *fileBackend) cleanup() {}

// NewFromFile creates a capturer that serves frames from an image file.
func NewFromFile(path string) Capturer {
	return newBase(&fileBackend{path: path}, "")
}
