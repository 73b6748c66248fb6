// Package lgr holds the process wide structured logger
package lgr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
)

// Logger is used by every package of the module.  It logs text to stderr
// until Init replaces it.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Options configures Init
type Options struct {
	// Level is one of debug, info, warn or error
	Level string
	// Console receives human readable text, defaults to stderr
	Console io.Writer
	// File enables JSON logging to a rotating file when not empty
	File string
	// MaxSize is the size in MB at which the file is rotated
	MaxSize int
	// MaxBackups is the number of rotated files kept
	MaxBackups int
	// MaxAge is the number of days rotated files are kept
	MaxAge int
	// Compress gzips rotated files
	Compress bool
}

// DefaultOptions returns console only logging at info level
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		Console:    os.Stderr,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     7,
		Compress:   true,
	}
}

// Init replaces Logger according to opts.  The returned closer flushes and
// closes the log file, it is a no-op for console only logging.
func Init(opts Options) (io.Closer, error) {

	level, err := ParseLevel(opts.Level)

	if err != nil {
		return nil, err
	}

	console := opts.Console

	if console == nil {
		console = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: level}
	handlers := []slog.Handler{slog.NewTextHandler(console, hopts)}

	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		file := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}

		handlers = append(handlers, slog.NewJSONHandler(file, hopts))
		closer = file
	}

	Logger = slog.New(fanout(handlers))

	return closer, nil
}

// ParseLevel converts a level name to a slog.Level, empty means info
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}

	return slog.LevelInfo, errors.New("unknown log level: " + s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout passes every record to all handlers that are enabled for its level
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {

	var errs []error

	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}

		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))

	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}

	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))

	for i, h := range f {
		out[i] = h.WithGroup(name)
	}

	return out
}
