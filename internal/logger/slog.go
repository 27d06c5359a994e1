package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	// Format is "json" or "text". Anything else means text.
	Format string
	Debug  bool
	Writer io.Writer
}

// New builds the process logger. Debug lowers the level to debug, where
// every host call is logged.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	ho := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	return slog.New(h)
}

// Discard drops everything; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
