// Package logging builds the structured logger each nearby command runs with.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configures a command logger
type Options struct {
	File    string // JSON log file; a leading ~ is expanded
	Level   string
	Verbose bool // Forces debug level

	// Fallback receives warnings when File cannot be opened. Nil discards.
	Fallback io.Writer

	Version string
	Command string
}

// New returns the logger for one command invocation. Every record carries
// the version and command path. When the log file cannot be opened the
// logger writes warnings to Fallback and the open error is returned along
// with it; the returned logger is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	var closer io.Closer = io.NopCloser(nil)

	file, err := openLogFile(opts.File)
	if err != nil {
		handler = fallbackHandler(opts.Fallback)
	} else {
		handler = slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
		closer = file
	}

	logger := slog.New(handler).With("version", opts.Version)
	if opts.Command != "" {
		logger = logger.With("command", opts.Command)
	}
	return logger, closer, err
}

func fallbackHandler(w io.Writer) slog.Handler {
	if w == nil {
		return NullLogger().Handler()
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn})
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("no log file configured")
	}
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// ParseLevel converts a string log level to slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NullLogger returns a logger that discards all output
func NullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
