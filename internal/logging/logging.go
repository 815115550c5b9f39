// Package logging builds the application's slog handler from configuration:
// level, text or JSON format, and an optional log file teed with stderr.
// Full diagnostic detail goes to the log; user-facing output stays short
// and categorized.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ParseLevel parses a log level name case-insensitively. Supported values:
// DEBUG, INFO, WARN, WARNING, ERROR. Unknown values default to INFO with a
// warning on stderr.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "Warning: Unknown log level '%s', using INFO\n", level)
		return slog.LevelInfo
	}
}

// Options controls handler construction.
type Options struct {
	// Level name, parsed with [ParseLevel].
	Level string
	// Format is "text" (default) or "json".
	Format string
	// File, when non-empty, is opened for append and teed with stderr.
	File string
}

// New builds a logger from opts. When the log file cannot be opened the
// logger falls back to stderr only; the returned cleanup closes the file
// and is safe to call either way.
func New(opts Options) (*slog.Logger, func() error) {
	var out io.Writer = os.Stderr
	cleanup := func() error { return nil }

	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: cannot create log directory %s: %v\n", dir, err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot open log file %s: %v\n", opts.File, err)
		} else {
			out = io.MultiWriter(os.Stderr, f)
			cleanup = f.Close
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler), cleanup
}
