package logging

import (
	"log/slog"
	"testing"

	"github.com/Sskr2000us/nexa-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_DoesNotPanic(t *testing.T) {
	cfgs := []config.LoggingConfig{
		{Level: "debug", Format: "text", Output: "stderr"},
		{Level: "info", Format: "json", Output: "stdout"},
		{}, // All defaults
	}

	for _, cfg := range cfgs {
		logger := New(cfg, "test")
		if logger == nil {
			t.Fatal("New returned nil")
		}
		logger.Debug("debug message", "key", "value")
		logger.Info("info message")
	}
}

func TestWith_AddsAttributes(t *testing.T) {
	logger := Default()
	child := logger.With("component", "test")
	if child == nil {
		t.Fatal("With returned nil")
	}
	// Child must be an independent logger instance.
	if child == logger {
		t.Error("With returned the same logger")
	}
	child.Info("message from child")
}
