// Package icons keeps the set of named icons the service can locate.
package icons

import (
	"bytes"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/corona10/goimagehash"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
	"github.com/GriffinCanCode/screenlocator/internal/locator"
)

// Extensions lists the file types LoadDir picks up.
var Extensions = []string{".png", ".gif", ".jpg", ".jpeg"}

// Info describes a registered icon.
type Info struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Hash   string `json:"hash,omitempty"` // perceptual difference hash
}

type entry struct {
	info Info
	icon locator.Icon
	hash *goimagehash.ImageHash
}

// Registry is a concurrency-safe set of icons keyed by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Decode reads an encoded icon or screen image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDecodeFailed, "failed to decode image")
	}
	return img, nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (image.Image, error) {
	return Decode(bytes.NewReader(data))
}

// Add registers img under name, replacing any previous icon of that name.
func (r *Registry) Add(name string, img image.Image) (Info, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Info{}, apperrors.New(apperrors.CodeInvalidInput, "icon name is empty")
	}
	grid := locator.FromImage(img)
	if grid.Empty() {
		return Info{}, apperrors.New(apperrors.CodeInvalidInput, "icon has no pixels").WithMetadata("icon", name)
	}

	e := &entry{
		info: Info{Name: name, Width: grid.Width(), Height: grid.Height()},
		icon: locator.Icon{Name: name, Grid: grid},
	}
	if hash, err := goimagehash.DifferenceHash(img); err == nil {
		e.hash = hash
		e.info.Hash = hash.ToString()
	} else {
		slog.Debug("icon hash failed", "icon", name, "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if dup := r.duplicateOf(e); dup != "" {
		slog.Warn("icon is pixel-identical to another icon", "icon", name, "other", dup)
	}
	r.entries[name] = e
	return e.info, nil
}

// duplicateOf returns the name of another icon with exactly the same pixels.
// The perceptual hash is used as a cheap pre-filter. Caller holds r.mu.
func (r *Registry) duplicateOf(e *entry) string {
	for name, other := range r.entries {
		if name == e.info.Name {
			continue
		}
		if e.hash != nil && other.hash != nil {
			if d, err := e.hash.Distance(other.hash); err != nil || d != 0 {
				continue
			}
		}
		if other.icon.Grid.Equal(e.icon.Grid) {
			return name
		}
	}
	return ""
}

// LoadDir registers every image in dir, named after its file without the
// extension. Files that fail to decode are skipped with a warning.
func (r *Registry) LoadDir(dir string) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeNotFound, "failed to read icon directory").
			WithMetadata("dir", dir)
	}

	loaded := 0
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name()))
		if f.IsDir() || !hasExtension(ext) {
			continue
		}
		path := filepath.Join(dir, f.Name())
		img, err := decodeFile(path)
		if err != nil {
			slog.Warn("skipping icon", "path", path, "error", err)
			continue
		}
		if _, err := r.Add(strings.TrimSuffix(f.Name(), filepath.Ext(f.Name())), img); err != nil {
			slog.Warn("skipping icon", "path", path, "error", err)
			continue
		}
		loaded++
	}
	slog.Info("icons loaded", "dir", dir, "count", loaded)
	return loaded, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func hasExtension(ext string) bool {
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Get returns the icon registered under name.
func (r *Registry) Get(name string) (locator.Icon, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return locator.Icon{}, false
	}
	return e.icon, true
}

// Remove drops name from the registry and reports whether it was present.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	delete(r.entries, name)
	return ok
}

// List returns all icons sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered icons.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
