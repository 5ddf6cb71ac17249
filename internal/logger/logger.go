package logger

import (
	"io"
	"log/slog"
	"os"
)

// Init builds the process logger and installs it as the slog default.
// Components receive the returned logger explicitly.
func Init(debug bool) *slog.Logger {
	l := New(os.Stdout, debug)
	slog.SetDefault(l)
	return l
}

// New returns a text logger writing to w.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard is a logger for tests and optional collaborators.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDefault returns l, or the slog default when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
