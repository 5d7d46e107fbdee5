package util

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. Development gets human-readable text
// at debug level; everything else gets JSON. An explicit level overrides the
// env default.
func NewLogger(env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level, env),
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(level, env string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if env == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
