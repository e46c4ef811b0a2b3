package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"kafji.net/penbridge/console"
)

// LevelTrace sits below debug and is used for per-record dumps.
const LevelTrace slog.Level = -8

type Logger struct {
	namespace string
}

func New(namespace string) *Logger {
	return &Logger{namespace: namespace}
}

func (l *Logger) transform(msg string, args []any) (string, []any) {
	return fmt.Sprintf("%s: %s", l.namespace, msg), args
}

func (l *Logger) Trace(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Debug(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Info(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Warn(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	msg, args = l.transform(msg, args)
	slog.Error(msg, args...)
}

// Enabled reports whether the default handler would emit records at level.
func (l *Logger) Enabled(level slog.Level) bool {
	return slog.Default().Enabled(context.Background(), level)
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
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

// SetLogLevel replaces the default slog handler with a text handler on the
// console writer filtered at the given level.
func SetLogLevel(level string) {
	lvl := ParseLevel(level)
	h := slog.NewTextHandler(console.Writer, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && len(groups) == 0 {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	})
	slog.SetDefault(slog.New(h))
}
