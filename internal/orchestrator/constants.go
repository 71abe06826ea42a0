// Package orchestrator coordinates screen snapshots, icons, and searches
package orchestrator

// Orchestrator configuration constants
const (
	// Live event buffer shared by step and match events
	EventBuffer = 256

	// Display name for icons supplied inline rather than from the registry
	InlineIconName = "inline"

	// Default number of history entries returned when no limit is given
	DefaultHistoryLimit = 20
)
