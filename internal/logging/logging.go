// Package logging wires the process-wide structured logger. Every other
// package logs through log/slog; this package only decides the backend and
// verbosity, following the pack's convention of backing slog with
// charmbracelet/log rather than hand-rolling a handler.
package logging

import (
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Setup installs the process-wide slog logger. verbose raises the level to
// debug; non-terminal output (piped to a file, a CI log collector) switches
// to JSON lines instead of the colored text format.
func Setup(verbose bool) {
	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	})

	if verbose {
		handler.SetLevel(charmlog.DebugLevel)
	} else {
		handler.SetLevel(charmlog.InfoLevel)
	}

	if !isTerminal(os.Stderr) {
		handler.SetFormatter(charmlog.JSONFormatter)
	}

	slog.SetDefault(slog.New(handler))
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
