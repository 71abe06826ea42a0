package locator

import (
	"log/slog"
	"slices"
	"time"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

// ColorIndex maps each color of a screen grid to the coordinates carrying it.
// It is immutable once built and safe for concurrent use.
type ColorIndex struct {
	screen *Grid
	points map[Color][]Point
}

// BuildIndex indexes every coordinate of screen in a single column-major pass.
// The grid must not be modified while the index is in use.
func BuildIndex(screen *Grid) (*ColorIndex, error) {
	if screen == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "screen grid is nil")
	}
	start := time.Now()

	idx := &ColorIndex{screen: screen, points: make(map[Color][]Point)}
	for x := 0; x < screen.width; x++ {
		for y := 0; y < screen.height; y++ {
			c := screen.pix[y*screen.width+x]
			idx.points[c] = append(idx.points[c], Point{X: x, Y: y})
		}
	}

	slog.Debug("building screen color map took",
		"duration", time.Since(start),
		"width", screen.width, "height", screen.height,
		"colors", len(idx.points))
	return idx, nil
}

// Lookup returns the coordinates of color c in scan order, or nil when c does
// not occur. The result is shared with the index and must be treated as
// read-only; it is clipped so appending to it never touches index storage.
func (i *ColorIndex) Lookup(c Color) []Point {
	return slices.Clip(i.points[c])
}

// Contains reports whether p appears in the sequence keyed by c. Coordinates
// outside the screen appear in no sequence.
//
// The answer comes from the indexed grid cell rather than the sequence: every
// in-bounds coordinate is filed under exactly its own color, so the two agree
// and membership stays O(1). Do not replace this with a scan of Lookup(c).
func (i *ColorIndex) Contains(c Color, p Point) bool {
	return i.screen.In(p) && i.screen.pix[p.Y*i.screen.width+p.X] == c
}

// Colors returns the number of distinct colors.
func (i *ColorIndex) Colors() int { return len(i.points) }

// Width returns the indexed screen width.
func (i *ColorIndex) Width() int { return i.screen.width }

// Height returns the indexed screen height.
func (i *ColorIndex) Height() int { return i.screen.height }
