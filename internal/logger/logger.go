// internal/logger/logger.go

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Setup builds the process logger from a level and a format (text or json)
func Setup(level, format string) *slog.Logger {
	defaultLogger = New(os.Stderr, level, format)
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// New builds a logger writing to w
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// L returns the process logger, falling back to info/text on stderr
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup("info", "text")
	}
	return defaultLogger
}

// Discard returns a logger that drops everything, for tests
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
