// Package logger provides the process-wide slog logger and attribute helpers.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger builds a logger from LOG_LEVEL and GO_ENV.
// Production uses the JSON handler; everything else uses text output.
func NewLogger() *slog.Logger {
	log := slog.New(newHandler(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("GO_ENV")))
	slog.SetDefault(log)
	return log
}

func newHandler(w io.Writer, level, env string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(env, "production") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Scope tags a log line with the component that produced it.
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error attaches an error under the "error" key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
