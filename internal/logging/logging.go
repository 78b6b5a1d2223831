package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	initOnce sync.Once
	logger   *slog.Logger
	exitFunc = os.Exit
)

// L returns the shared tracker logger, initializing it on first use.
func L() *slog.Logger {
	initOnce.Do(func() {
		logger = slog.New(newHandler())
	})
	return logger
}

func newHandler() slog.Handler {
	level := parseLevel(os.Getenv("SEENTICS_LOG_LEVEL"))
	if Debug() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: strings.EqualFold(os.Getenv("SEENTICS_LOG_SOURCE"), "true"),
	}

	switch strings.ToLower(os.Getenv("SEENTICS_LOG_FORMAT")) {
	case "json", "structured":
		return slog.NewJSONHandler(os.Stdout, opts)
	default:
		// Text handler writes to stderr so JSON output remains clean if enabled later.
		return slog.NewTextHandler(os.Stderr, opts)
	}
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		// The tracker runs inside applications it does not own, so the
		// default stays quiet below warn.
		return slog.LevelWarn
	}
}

// Debug reports whether verbose tracker diagnostics were requested.
func Debug() bool {
	return strings.EqualFold(os.Getenv("SEENTICS_DEBUG"), "true")
}

// With returns a child logger with additional attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Fatal logs the message at error level and exits with status 1.
func Fatal(msg string, args ...any) {
	L().Error(msg, args...)
	exitFunc(1)
}
