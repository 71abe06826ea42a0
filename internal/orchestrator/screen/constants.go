// Package screen turns captured frames into indexed screen snapshots
package screen

// Screen processing constants
const (
	// Perceptual hash distance at or below which a changed frame is logged
	// as a minor change (cursor blink, clock tick)
	MinorChangeDistance = 4
)
