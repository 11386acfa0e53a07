package logging

import (
	"log/slog"
	"testing"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/config"
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
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_DoesNotPanic(t *testing.T) {
	for _, format := range []string{"json", "text", "bogus"} {
		for _, output := range []string{"stdout", "stderr", ""} {
			log := New(config.LoggingConfig{Level: "info", Format: format, Output: output}, "test")
			if log == nil || log.Logger == nil {
				t.Fatalf("New(format=%q, output=%q) returned nil logger", format, output)
			}
		}
	}
}

func TestWith_ReturnsNewLogger(t *testing.T) {
	base := Default()
	child := base.With("component", "stats")

	if child == base {
		t.Error("With() should return a new logger")
	}
	if child.Logger == nil {
		t.Error("child logger should be usable")
	}
}
