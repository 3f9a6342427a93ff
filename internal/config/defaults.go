package config

import (
	"os"
	"path/filepath"
)

const appDir = "composeim"

// PlatformDataDir returns $XDG_DATA_HOME/composeim, or
// ~/.local/share/composeim.
func PlatformDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, appDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appDir)
}

// PlatformConfigDir returns $XDG_CONFIG_HOME/composeim, or
// ~/.config/composeim.
func PlatformConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appDir)
}

// SupportedConfigFormats lists the extensions Load understands.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile returns the first config.<ext> found in the current
// directory, then the config directory. It returns "" when none exist.
func FindConfigFile() string {
	if v := os.Getenv("COMPOSEIM_CONFIG"); v != "" {
		return v
	}
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
