// Package config handles locator service configuration
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

// DebugConfig controls step-frame persistence. It is passed explicitly to the
// components that act on it.
type DebugConfig struct {
	Enabled   bool   // write frames at all
	Directory string // root directory for frames
	Verbose   bool   // one frame per narrowing step instead of only the final one
}

type Config struct {
	HTTPAddr          string
	GRPCAddr          string
	IconDir           string
	ScreenSource      string  // image file used instead of native capture
	ScreenCaptureRate float64 // Hz
	HistorySize       int
	LogLevel          slog.Level
	Debug             DebugConfig
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		GRPCAddr:          getEnv("GRPC_ADDR", ":50052"),
		IconDir:           getEnv("ICON_DIR", "icons"),
		ScreenSource:      getEnv("SCREEN_SOURCE", ""),
		ScreenCaptureRate: getEnvFloat("SCREEN_CAPTURE_RATE", 1.0),
		HistorySize:       getEnvInt("HISTORY_SIZE", 50),
		LogLevel:          getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		Debug: DebugConfig{
			Enabled:   getEnvBool("DEBUG_SAVE_STEPS", false),
			Directory: getEnv("DEBUG_SAVE_STEPS_DIR", "debug"),
			Verbose:   getEnvBool("DEBUG_SAVE_STEPS_VERBOSE", false),
		},
	}
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.ScreenCaptureRate <= 0 {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "SCREEN_CAPTURE_RATE must be positive, got %v", c.ScreenCaptureRate)
	}
	if c.HistorySize <= 0 {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "HISTORY_SIZE must be positive, got %d", c.HistorySize)
	}
	if c.Debug.Enabled && strings.TrimSpace(c.Debug.Directory) == "" {
		return apperrors.New(apperrors.CodeConfigInvalid, "DEBUG_SAVE_STEPS_DIR must be set when DEBUG_SAVE_STEPS is on")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvLevel(key string, def slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return def
}
