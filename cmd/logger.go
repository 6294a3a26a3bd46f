package cmd

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newLogger builds the command logger. Human-readable text when stderr is
// a terminal, JSON when piped or redirected so scripts and CI get
// machine-parseable output. Verbosity counts -v flags: 0 warnings only,
// 1 info, 2+ debug.
func newLogger(verbosity int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}

	options := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
