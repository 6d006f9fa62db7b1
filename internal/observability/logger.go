package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger writes JSON to stdout. level accepts debug, info, warn or error;
// empty means debug in dev and info elsewhere.
func NewLogger(env, level string) *slog.Logger {
	return newLogger(os.Stdout, env, level)
}

func newLogger(w io.Writer, env, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(env, level),
	})

	return slog.New(NewTraceHandler(handler)).With("env", env)
}

func parseLevel(env, level string) slog.Level {
	var l slog.Level
	if level != "" && l.UnmarshalText([]byte(strings.ToUpper(level))) == nil {
		return l
	}
	if env == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
