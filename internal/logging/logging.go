// Package logging builds the slog.Logger used across the daemon: one
// handler, JSON when requested or when writing to a file that is not a
// terminal, text otherwise, with a configurable minimum level.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ParseLevel maps a config/CLI level name to a slog.Level. Unknown names
// fall back to Info rather than erroring, since a typo'd log level
// shouldn't stop the daemon from starting.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// Options configures New.
type Options struct {
	Level  string
	JSON   bool
	Output io.Writer // defaults to os.Stderr
}

// New builds a *slog.Logger per Options. JSON output is used automatically
// when Output is an *os.File that is not a terminal, so piping studiod's
// output to a file or log collector gets machine-parseable records without
// a flag. Any other writer gets text unless Options.JSON is set.
func New(opts Options) *slog.Logger {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	useJSON := opts.JSON
	if f, ok := w.(*os.File); ok && !isatty.IsTerminal(f.Fd()) {
		useJSON = true
	}

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(handler).With("service", "studiod")
}
