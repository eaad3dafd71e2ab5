package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a structured JSON logger using slog. Production runs at info;
// every other environment logs debug output too.
func New(environment string) *slog.Logger {
	level := slog.LevelDebug
	if strings.EqualFold(environment, "production") {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler).With("service", "attesto")
}
