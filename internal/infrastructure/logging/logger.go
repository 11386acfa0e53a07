package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger for the clinic core.
//
// All methods are safe for concurrent use. Never log credentials or
// patient-identifying free text; log record IDs instead.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the logging configuration.
//
// Format "text" produces human-readable output for an attended terminal;
// anything else falls back to JSON for the unattended appliance case.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "cliniccore"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
//	repoLog := logger.With("component", "patient")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default creates a logger for use before configuration is loaded.
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
