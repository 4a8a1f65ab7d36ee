package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger. Format "json" emits structured lines
// for log shipping; "pretty" is the colorized handler for interactive
// commands.
func New(level, format string) *slog.Logger {
	opts := slog.HandlerOptions{Level: ParseLevel(level)}

	if strings.EqualFold(format, "pretty") {
		return slog.New(NewPrettyHandler(os.Stderr, PrettyHandlerOptions{SlogOpts: opts}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &opts))
}

// ParseLevel maps a config level string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
