// Package locator finds exact occurrences of an icon inside a screen image.
//
// A ColorIndex is built once per screen snapshot and maps every color to the
// coordinates carrying it. A Matcher then narrows the anchors that share the
// icon's top-left color, one icon pixel at a time, until either no anchor is
// left or every icon pixel has been checked.
package locator

import (
	"fmt"
	"image"
	"image/color"
	"slices"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

// Point is a (column, row) coordinate within a Grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p shifted by d. p itself is left untouched.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Color is an exact packed ARGB pixel value, 8 bits per channel,
// non-premultiplied.
type Color uint32

// ColorOf packs c into a Color.
func ColorOf(c color.Color) Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color(uint32(n.A)<<24 | uint32(n.R)<<16 | uint32(n.G)<<8 | uint32(n.B))
}

// NRGBA unpacks c.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{A: uint8(c >> 24), R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c)}
}

func (c Color) String() string {
	return fmt.Sprintf("#%08x", uint32(c))
}

// Grid is a read-only rectangular array of colors, stored row-major.
type Grid struct {
	width, height int
	pix           []Color
}

// NewGrid wraps pix as a width×height grid. pix is not copied and must not be
// modified afterwards.
func NewGrid(width, height int, pix []Color) (*Grid, error) {
	if width < 0 || height < 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "negative grid size %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, apperrors.Newf(apperrors.CodeInvalidInput, "grid %dx%d needs %d pixels, got %d", width, height, width*height, len(pix))
	}
	return &Grid{width: width, height: height, pix: pix}, nil
}

// FromImage decodes img into a Grid whose origin is img.Bounds().Min.
func FromImage(img image.Image) *Grid {
	b := img.Bounds()
	g := &Grid{width: b.Dx(), height: b.Dy(), pix: make([]Color, b.Dx()*b.Dy())}

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < g.height; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < g.width; x++ {
				i := x * 4
				g.pix[y*g.width+x] = Color(uint32(row[i+3])<<24 | uint32(row[i])<<16 | uint32(row[i+1])<<8 | uint32(row[i+2]))
			}
		}
	default:
		for y := 0; y < g.height; y++ {
			for x := 0; x < g.width; x++ {
				g.pix[y*g.width+x] = ColorOf(img.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}
	return g
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Empty reports whether the grid has no pixels.
func (g *Grid) Empty() bool { return g.width == 0 || g.height == 0 }

// In reports whether p lies within the grid.
func (g *Grid) In(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

// At returns the color at (x, y). It panics when (x, y) is out of bounds.
func (g *Grid) At(x, y int) Color {
	if !g.In(Point{X: x, Y: y}) {
		panic(fmt.Sprintf("locator: At(%d, %d) outside %dx%d grid", x, y, g.width, g.height))
	}
	return g.pix[y*g.width+x]
}

// Equal reports whether g and o have the same size and pixels.
func (g *Grid) Equal(o *Grid) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.width == o.width && g.height == o.height && slices.Equal(g.pix, o.pix)
}

// Image renders the grid as an NRGBA image.
func (g *Grid) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.width, g.height))
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			img.SetNRGBA(x, y, g.pix[y*g.width+x].NRGBA())
		}
	}
	return img
}

// Icon is a pattern to search for. Name is only used in diagnostics.
type Icon struct {
	Name string
	Grid *Grid
}
