// Package logging builds the zerolog logger used for operator-facing logs.
//
// User-facing progress goes through download.ProgressEvent; this log is for
// diagnosing runs after the fact. Every record carries the run id once the
// download manager has started.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/handiism/naip-downloader/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger from cfg.
//
// Records go to console in the configured format ("console" renders them
// with zerolog.ConsoleWriter, "json" writes one object per line). When
// cfg.File is set, JSON records are also appended to that file. The returned
// Closer releases the file and must be closed when the program exits.
func New(cfg config.LoggingSettings, console io.Writer) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer
	switch cfg.Format {
	case "json":
		out = console
	case "console", "":
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly}
	default:
		return zerolog.Nop(), nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file, err := openLogFile(cfg.File)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("app", "naip-downloader").
		Logger()

	return logger, closer, nil
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}
