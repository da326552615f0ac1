// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for weaviate-otel components.
//
// The logger is a thin layer over Go's slog package. It exists so every
// binary and library in this module configures level, format and the
// "service" attribute the same way, and so libraries can accept a plain
// *slog.Logger while binaries keep a handle they can close.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("instrumentation enabled", "api", "v4")
//
// # Formats
//
// Three output formats are supported:
//
//   - FormatText: human-readable key=value lines
//   - FormatJSON: one JSON object per line
//   - FormatAuto: text when the output is a terminal, JSON otherwise
//
// # Log Levels
//
// Extraction failures inside the instrumentation are logged at Debug and
// never above; they are expected on unusual responses and must not be
// noisy in production.
//
// # Thread Safety
//
// Logger is safe for concurrent use.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity levels.
//
// Levels are ordered by severity: Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting, including
	// attribute extraction failures.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable issues.
	LevelWarn

	// LevelError is for operation failures.
	LevelError
)

// String returns the human-readable name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// toSlogLevel converts our Level to slog.Level.
func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a case-insensitive level name into a Level.
//
// Description:
//
//	Accepts "debug", "info", "warn", "warning" and "error". Used by the
//	CLI flag and config file parsing.
//
// Inputs:
//
//	s - Level name.
//
// Outputs:
//
//	Level - The parsed level, LevelInfo on error.
//	error - Non-nil if the name is not recognized.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Format selects the log line encoding.
type Format string

const (
	// FormatText writes human-readable key=value lines.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
	// FormatAuto picks text for terminals and JSON otherwise.
	FormatAuto Format = "auto"
)

// Config configures the Logger behavior.
//
// A zero-value Config creates a logger that writes Info+ messages to
// stderr, choosing the format automatically.
type Config struct {
	// Level sets the minimum log level.
	// Default: LevelInfo
	Level Level

	// Format selects text, json or auto.
	// Default: FormatAuto
	Format Format

	// Service is added to every entry as the "service" attribute.
	// Default: "" (no service attribute)
	Service string

	// Output is where entries are written.
	// Default: os.Stderr
	Output io.Writer

	// Quiet discards all output. Useful in tests and for library
	// consumers who want the instrumentation silent.
	Quiet bool
}

// =============================================================================
// Logger
// =============================================================================

// Logger provides structured logging with a configurable destination.
//
// # Thread Safety
//
// Logger is safe for concurrent use from multiple goroutines.
type Logger struct {
	slog   *slog.Logger
	config Config

	// closer is set when the output needs closing (e.g. a file).
	closer io.Closer
	mu     sync.Mutex
}

// New creates a new Logger with the given configuration.
//
// Description:
//
//	Builds a slog handler for the configured output and format and
//	attaches the service attribute when set.
//
// Inputs:
//
//	config - Logger configuration (see Config for options).
//
// Outputs:
//
//	*Logger - Configured logger ready for use.
//
// Example:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelDebug,
//	    Service: "weaviatetrace",
//	})
//	defer logger.Close()
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	if config.Quiet {
		out = io.Discard
	}

	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handler slog.Handler
	if useJSON(config.Format, out) {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	l := &Logger{
		slog:   slog.New(handler),
		config: config,
	}
	if c, ok := out.(io.Closer); ok && out != os.Stderr && out != os.Stdout {
		l.closer = c
	}
	return l
}

// Default returns a logger with default settings (Info, stderr, auto format).
func Default() *Logger {
	return New(Config{})
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error logs at LevelError.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Log(context.Background(), slog.LevelError, msg, args...)
}

// With returns a child logger that adds the given attributes to every entry.
//
// The child shares the parent's output; closing the child is a no-op.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
	}
}

// Slog returns the underlying *slog.Logger.
//
// Libraries in this module accept *slog.Logger; pass this value to them.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close releases the output if it was opened by the caller as a closable
// writer other than stdout/stderr. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// useJSON resolves the format for a given writer.
func useJSON(format Format, out io.Writer) bool {
	switch format {
	case FormatJSON:
		return true
	case FormatText:
		return false
	default:
		f, ok := out.(*os.File)
		if !ok {
			return true
		}
		return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
}
