// Package logging provides structured logging with slog for composeim.
//
// Loggers carry a swappable level so a reloaded configuration can change
// verbosity without rebuilding handlers. Attributes that hold composed text
// are redacted unless the configuration opts out.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	// FormatText outputs logfmt-style text.
	FormatText Format = iota
	// FormatJSON outputs one JSON object per line.
	FormatJSON
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format.
	Format Format

	// Output is "stdout", "stderr", "file" or "both" (stderr and file).
	Output string

	// FilePath is the log file used when Output includes a file.
	FilePath string

	// MaxSizeMB is the size in megabytes at which the file rotates.
	MaxSizeMB int64

	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int

	// MaxBackups is how many rotated files are kept.
	MaxBackups int

	// Compress gzips rotated files.
	Compress bool

	// AddSource adds file:line to records.
	AddSource bool

	// Redact replaces composed text and key sequences with a placeholder.
	Redact bool

	// Component is attached to every record as "component".
	Component string
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		FilePath:   DefaultLogPath(),
		MaxSizeMB:  10,
		MaxAgeDays: 14,
		MaxBackups: 3,
		Compress:   true,
		Redact:     true,
		Component:  "composeim",
	}
}

// DefaultLogPath returns $XDG_STATE_HOME/composeim/composeim.log.
func DefaultLogPath() string {
	return filepath.Join(stateDir(), "composeim.log")
}

func stateDir() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		homeDir, _ := os.UserHomeDir()
		stateHome = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateHome, "composeim")
}

// Logger wraps slog.Logger with a shared level and an optional rotating file.
type Logger struct {
	*slog.Logger
	config  *Config
	level   *slog.LevelVar
	rotator *FileRotator
	mu      sync.Mutex
}

// New creates a Logger writing to the outputs named by cfg.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{config: cfg}
	w, err := l.setupWriter()
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}
	l.build(w)
	return l, nil
}

// NewWithWriter creates a Logger writing to w regardless of cfg.Output.
func NewWithWriter(cfg *Config, w io.Writer) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	l := &Logger{config: cfg}
	l.build(w)
	return l
}

func (l *Logger) build(w io.Writer) {
	l.level = new(slog.LevelVar)
	l.level.Set(l.config.Level)

	opts := &slog.HandlerOptions{
		Level:     l.level,
		AddSource: l.config.AddSource,
	}
	if l.config.Redact {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if shouldRedact(a.Key) {
				a.Value = slog.StringValue("[REDACTED]")
			}
			return a
		}
	}

	var handler slog.Handler
	switch l.config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	if l.config.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("component", l.config.Component),
		})
	}
	l.Logger = slog.New(handler)
}

func (l *Logger) setupWriter() (io.Writer, error) {
	switch strings.ToLower(l.config.Output) {
	case "stdout":
		return os.Stdout, nil
	case "file", "both":
		rotator, err := NewFileRotator(l.config)
		if err != nil {
			return nil, err
		}
		l.rotator = rotator
		if strings.EqualFold(l.config.Output, "both") {
			return io.MultiWriter(os.Stderr, rotator), nil
		}
		return rotator, nil
	default:
		return os.Stderr, nil
	}
}

// shouldRedact reports whether a key carries user-typed content.
func shouldRedact(key string) bool {
	switch strings.ToLower(key) {
	case "text", "preedit", "sequence", "surrounding":
		return true
	}
	return false
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// Level returns the current level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// WithComponent returns a child logger tagged with a different component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(slog.String("component", name)),
		config:  l.config,
		level:   l.level,
		rotator: l.rotator,
	}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Sync flushes the log file, if any.
func (l *Logger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		return l.rotator.Sync()
	}
	return nil
}

// ParseLevel parses a string into a log level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// LevelString returns the string representation of a log level.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}
