package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrInvalidConfig is returned by Loader when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig checks every section and returns all problems at once.
// Warnings are included; use ValidationErrors.HasErrors to decide.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	switch c.Backend {
	case BackendWayland, BackendIBus:
	default:
		errs = append(errs, ValidationError{
			Field:   "backend",
			Message: fmt.Sprintf("unknown backend %q (valid: wayland, ibus)", c.Backend),
		})
	}

	errs = append(errs, validateKeyboard(&c.Keyboard)...)
	errs = append(errs, validateStats(&c.Stats)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateKeyboard(k *KeyboardConfig) ValidationErrors {
	if k.RequireXKB && !k.XKB {
		return ValidationErrors{{
			Field:   "keyboard.require_xkb",
			Message: "requires keyboard.xkb to be enabled",
		}}
	}
	return nil
}

func validateStats(s *StatsConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Enabled && s.Path == "" {
		errs = append(errs, *RequiredFieldError("stats.path"))
	}
	if s.Path != "" && s.Path != ":memory:" && !filepath.IsAbs(s.Path) {
		errs = append(errs, ValidationError{
			Field:   "stats.path",
			Message: "relative path resolves against the working directory",
		})
	}
	if s.RetentionDays < 0 {
		errs = append(errs, *RangeError("stats.retention_days", 0, "unbounded"))
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is %q", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}
	return errs
}

// IsWarning reports whether the issue is non-fatal.
func (e *ValidationError) IsWarning() bool {
	return e.Field == "stats.path" && strings.HasPrefix(e.Message, "relative path")
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// Check runs ValidateConfig and drops warnings. It returns nil when only
// warnings remain.
func Check(c *Config) (warnings ValidationErrors, err error) {
	verr := ValidateConfig(c)
	if verr == nil {
		return nil, nil
	}
	var errs ValidationErrors
	if !errors.As(verr, &errs) {
		return nil, verr
	}
	if errs.HasErrors() {
		return errs.Warnings(), fmt.Errorf("%w: %w", ErrInvalidConfig, errs.Errors())
	}
	return errs.Warnings(), nil
}
