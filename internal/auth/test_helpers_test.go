package auth

import (
	"io"
	"log/slog"

	"github.com/JgvJalandoni/geneva-clinic-core/internal/infrastructure/logging"
)

// testLogger returns a logger that discards all output.
func testLogger() *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
