package screen

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

const screenshotFile = "screenshot.png"

// runTool runs a screenshot command that writes to out and returns the file.
func runTool(out string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeCaptureFailed, "%s failed", name).
			WithMetadata("stderr", strings.TrimSpace(stderr.String()))
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureFailed, "failed to read screenshot")
	}
	os.Remove(out)
	return data, nil
}

func makeTempDir() (string, error) {
	return os.MkdirTemp("", "screenlocator-screen-*")
}

func tempShot(dir string) string { return filepath.Join(dir, screenshotFile) }
