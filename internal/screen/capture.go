// Package screen provides platform-agnostic lossless screen capture
package screen

import (
	"crypto/md5"
	"os"
)

// Capturer captures PNG screenshots with change detection
type Capturer interface {
	// Capture returns the frame and whether it differs from the previous one.
	Capture() ([]byte, bool, error)
	CaptureAlways() ([]byte, error)
	Close()
}

// backend implements platform-specific raw capture
type backend interface {
	captureRaw() ([]byte, error)
	cleanup()
}

// baseCapturer provides shared hash-based change detection. The whole frame
// is hashed: a single changed pixel invalidates the color index.
type baseCapturer struct {
	backend
	lastHash [md5.Size]byte
	tempDir  string
}

func newBase(b backend, tempDir string) *baseCapturer {
	return &baseCapturer{backend: b, tempDir: tempDir}
}

func (c *baseCapturer) Capture() ([]byte, bool, error) {
	data, err := c.captureRaw()
	if err != nil {
		return nil, false, err
	}
	hash := md5.Sum(data)
	if hash == c.lastHash {
		return data, false, nil
	}
	c.lastHash = hash
	return data, true, nil
}

func (c *baseCapturer) CaptureAlways() ([]byte, error) {
	data, err := c.captureRaw()
	if err != nil {
		return nil, err
	}
	c.lastHash = md5.Sum(data)
	return data, nil
}

func (c *baseCapturer) Close() {
	c.cleanup()
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}
