package infra

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a structured JSON logger at the configured level.
// Supported levels: "debug", "info", "warn", "error"; anything else
// falls back to "info".
func NewLogger(level string) *slog.Logger {
	var slevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slevel = slog.LevelDebug
	case "info":
		slevel = slog.LevelInfo
	case "warn":
		slevel = slog.LevelWarn
	case "error":
		slevel = slog.LevelError
	default:
		slevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slevel})
	return slog.New(handler)
}
