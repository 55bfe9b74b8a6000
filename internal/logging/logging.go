// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options selects the handler and its destination.
type Options struct {
	Level  slog.Level
	Format string
	// File, when set, receives a copy of every record and is rotated.
	File string
}

// New returns a logger and a close function for the rotating file, if any.
// JSON goes through slog's own handler; text goes through charmbracelet/log.
func New(opts Options, stdout io.Writer) (*slog.Logger, func() error, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	w := stdout
	closer := func() error { return nil }

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create log dir: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(stdout, rotating)
		closer = rotating.Close
	}

	var handler slog.Handler
	switch opts.Format {
	case "", FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	case FormatText:
		handler = log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Level:           log.Level(opts.Level),
			Prefix:          "plantbutler",
		})
	default:
		return nil, nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}
	return slog.New(handler), closer, nil
}
