// Package config handles configuration loading, validation, and hot reload
// for composeim.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"composeim/internal/logging"
)

// Version is the current configuration schema version.
const Version = 1

// Backends.
const (
	BackendWayland = "wayland"
	BackendIBus    = "ibus"
)

// Config holds the complete composeim configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Backend selects the protocol binding: "wayland" or "ibus".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	Wayland  WaylandConfig  `toml:"wayland" json:"wayland" yaml:"wayland"`
	IBus     IBusConfig     `toml:"ibus" json:"ibus" yaml:"ibus"`
	Keyboard KeyboardConfig `toml:"keyboard" json:"keyboard" yaml:"keyboard"`
	Stats    StatsConfig    `toml:"stats" json:"stats" yaml:"stats"`
	Logging  LoggingConfig  `toml:"logging" json:"logging" yaml:"logging"`
}

// WaylandConfig configures the zwp_input_method_v1 binding.
type WaylandConfig struct {
	// Display is the socket name or absolute path. Empty means
	// $WAYLAND_DISPLAY, then "wayland-0".
	Display string `toml:"display" json:"display" yaml:"display"`
}

// IBusConfig configures the IBus binding.
type IBusConfig struct {
	// Address overrides $IBUS_ADDRESS.
	Address string `toml:"address" json:"address" yaml:"address"`

	// ComponentDir is where "ibus install" writes the component file.
	// Empty means $XDG_DATA_HOME/ibus/component.
	ComponentDir string `toml:"component_dir" json:"component_dir" yaml:"component_dir"`
}

// KeyboardConfig selects how raw key codes are decoded.
type KeyboardConfig struct {
	// XKB decodes keys with libxkbcommon when it can be loaded.
	XKB bool `toml:"xkb" json:"xkb" yaml:"xkb"`

	// RequireXKB fails startup instead of falling back to the plain codec.
	RequireXKB bool `toml:"require_xkb" json:"require_xkb" yaml:"require_xkb"`
}

// StatsConfig configures the compose usage store.
type StatsConfig struct {
	// Enabled records every finished compose attempt.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `toml:"path" json:"path" yaml:"path"`

	// RetentionDays prunes runs older than this on startup. Zero keeps all.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days"`

	// SnapshotOnExit stores session counters when the backend stops.
	SnapshotOnExit bool `toml:"snapshot_on_exit" json:"snapshot_on_exit" yaml:"snapshot_on_exit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of rotated files.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress gzips rotated files.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`

	// Redact hides composed text in log records.
	Redact bool `toml:"redact" json:"redact" yaml:"redact"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Backend: BackendWayland,
		Keyboard: KeyboardConfig{
			XKB: true,
		},
		Stats: StatsConfig{
			Enabled:        true,
			Path:           filepath.Join(PlatformDataDir(), "stats.db"),
			RetentionDays:  90,
			SnapshotOnExit: true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   logging.DefaultLogPath(),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
			Redact:     true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from path, or from FindConfigFile when path is
// empty. A missing file yields the defaults. The decoder is chosen by
// extension. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		cfg := DefaultConfig()
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories for the stats database and
// log file.
func (c *Config) EnsureDirectories() error {
	dirs := []string{}
	if c.Stats.Enabled {
		dirs = append(dirs, filepath.Dir(c.Stats.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies COMPOSEIM_* environment variables.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("COMPOSEIM_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("COMPOSEIM_WAYLAND_DISPLAY"); v != "" {
		c.Wayland.Display = v
	}
	if v := os.Getenv("COMPOSEIM_IBUS_ADDRESS"); v != "" {
		c.IBus.Address = v
	}
	if v := os.Getenv("COMPOSEIM_XKB"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Keyboard.XKB = b
		}
	}
	if v := os.Getenv("COMPOSEIM_STATS_PATH"); v != "" {
		c.Stats.Path = v
	}
	if v := os.Getenv("COMPOSEIM_STATS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Stats.Enabled = b
		}
	}
	if v := os.Getenv("COMPOSEIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("COMPOSEIM_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("COMPOSEIM_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// LoggerConfig converts the logging section for logging.New. Unknown
// level or format strings fall back to info and text; Validate reports them.
func (c *Config) LoggerConfig(component string) *logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	format, _ := logging.ParseFormat(c.Logging.Format)
	return &logging.Config{
		Level:      level,
		Format:     format,
		Output:     c.Logging.Output,
		FilePath:   c.Logging.FilePath,
		MaxSizeMB:  int64(c.Logging.MaxSizeMB),
		MaxAgeDays: c.Logging.MaxAgeDays,
		MaxBackups: c.Logging.MaxBackups,
		Compress:   c.Logging.Compress,
		Redact:     c.Logging.Redact,
		Component:  component,
	}
}
