package config

import (
	"log/slog"
	"testing"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
)

var envVars = []string{
	"HTTP_ADDR", "GRPC_ADDR", "ICON_DIR", "SCREEN_SOURCE", "SCREEN_CAPTURE_RATE",
	"HISTORY_SIZE", "LOG_LEVEL", "DEBUG_SAVE_STEPS", "DEBUG_SAVE_STEPS_DIR",
	"DEBUG_SAVE_STEPS_VERBOSE",
}

func TestLoad(t *testing.T) {
	for _, v := range envVars {
		t.Setenv(v, "")
	}

	cfg := Load()

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.GRPCAddr != ":50052" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":50052")
	}
	if cfg.IconDir != "icons" {
		t.Errorf("IconDir = %q, want %q", cfg.IconDir, "icons")
	}
	if cfg.ScreenSource != "" {
		t.Errorf("ScreenSource = %q, want empty", cfg.ScreenSource)
	}
	if cfg.ScreenCaptureRate != 1.0 {
		t.Errorf("ScreenCaptureRate = %f, want %f", cfg.ScreenCaptureRate, 1.0)
	}
	if cfg.HistorySize != 50 {
		t.Errorf("HistorySize = %d, want 50", cfg.HistorySize)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.Debug.Enabled || cfg.Debug.Verbose {
		t.Error("debug frames should default to off")
	}
	if cfg.Debug.Directory != "debug" {
		t.Errorf("Debug.Directory = %q, want %q", cfg.Debug.Directory, "debug")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("GRPC_ADDR", ":6000")
	t.Setenv("ICON_DIR", "/srv/icons")
	t.Setenv("SCREEN_SOURCE", "/tmp/screen.png")
	t.Setenv("SCREEN_CAPTURE_RATE", "2.5")
	t.Setenv("HISTORY_SIZE", "10")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEBUG_SAVE_STEPS", "1")
	t.Setenv("DEBUG_SAVE_STEPS_DIR", "/tmp/frames")
	t.Setenv("DEBUG_SAVE_STEPS_VERBOSE", "true")

	cfg := Load()

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9000")
	}
	if cfg.GRPCAddr != ":6000" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":6000")
	}
	if cfg.IconDir != "/srv/icons" {
		t.Errorf("IconDir = %q", cfg.IconDir)
	}
	if cfg.ScreenSource != "/tmp/screen.png" {
		t.Errorf("ScreenSource = %q", cfg.ScreenSource)
	}
	if cfg.ScreenCaptureRate != 2.5 {
		t.Errorf("ScreenCaptureRate = %f, want %f", cfg.ScreenCaptureRate, 2.5)
	}
	if cfg.HistorySize != 10 {
		t.Errorf("HistorySize = %d, want 10", cfg.HistorySize)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	want := DebugConfig{Enabled: true, Directory: "/tmp/frames", Verbose: true}
	if cfg.Debug != want {
		t.Errorf("Debug = %+v, want %+v", cfg.Debug, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero rate", func(c *Config) { c.ScreenCaptureRate = 0 }},
		{"negative history", func(c *Config) { c.HistorySize = -1 }},
		{"debug without dir", func(c *Config) { c.Debug = DebugConfig{Enabled: true, Directory: " "} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ScreenCaptureRate: 1, HistorySize: 1, Debug: DebugConfig{Directory: "d"}}
			tt.modify(cfg)
			err := cfg.Validate()
			if !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
				t.Errorf("Validate() = %v, want CONFIG_INVALID", err)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "hello")
	if v := getEnv("TEST_STRING", "default"); v != "hello" {
		t.Errorf("getEnv = %q, want %q", v, "hello")
	}
	if v := getEnv("NONEXISTENT", "default"); v != "default" {
		t.Errorf("getEnv = %q, want %q", v, "default")
	}

	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_INVALID", "not-a-number")
	if v := getEnvInt("TEST_INT", 0); v != 42 {
		t.Errorf("getEnvInt = %d, want %d", v, 42)
	}
	if v := getEnvInt("TEST_INT_INVALID", 100); v != 100 {
		t.Errorf("getEnvInt with invalid = %d, want %d", v, 100)
	}

	t.Setenv("TEST_FLOAT", "3.14")
	if v := getEnvFloat("TEST_FLOAT", 0.0); v != 3.14 {
		t.Errorf("getEnvFloat = %f, want %f", v, 3.14)
	}
	if v := getEnvFloat("NONEXISTENT", 2.71); v != 2.71 {
		t.Errorf("getEnvFloat = %f, want %f", v, 2.71)
	}

	t.Setenv("TEST_BOOL_TRUE", "true")
	t.Setenv("TEST_BOOL_ONE", "1")
	t.Setenv("TEST_BOOL_FALSE", "false")
	if !getEnvBool("TEST_BOOL_TRUE", false) {
		t.Error("getEnvBool should return true for 'true'")
	}
	if !getEnvBool("TEST_BOOL_ONE", false) {
		t.Error("getEnvBool should return true for '1'")
	}
	if getEnvBool("TEST_BOOL_FALSE", true) {
		t.Error("getEnvBool should return false for 'false'")
	}

	t.Setenv("TEST_LEVEL", "warn")
	t.Setenv("TEST_LEVEL_INVALID", "loud")
	if v := getEnvLevel("TEST_LEVEL", slog.LevelInfo); v != slog.LevelWarn {
		t.Errorf("getEnvLevel = %v, want %v", v, slog.LevelWarn)
	}
	if v := getEnvLevel("TEST_LEVEL_INVALID", slog.LevelError); v != slog.LevelError {
		t.Errorf("getEnvLevel with invalid = %v, want %v", v, slog.LevelError)
	}
}
