// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection WebSocket rate limiting
	RateLimitMessages = 20          // Max messages per connection per window
	RateLimitWindow   = time.Second // Sliding window duration

	// Upper bound for uploaded icon and screen images
	MaxImageBytes = 16 << 20

	// Deadline for a single WebSocket push
	WriteTimeout = 5 * time.Second

	// Upper bound for ?limit= on history queries
	MaxHistoryLimit = 500
)
