package ibus

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const componentFile = "composeim.xml"

// Component is an IBus component description.
type Component struct {
	XMLName     xml.Name     `xml:"component"`
	Name        string       `xml:"name"`
	Description string       `xml:"description"`
	Exec        string       `xml:"exec"`
	Version     string       `xml:"version"`
	Author      string       `xml:"author"`
	License     string       `xml:"license"`
	TextDomain  string       `xml:"textdomain"`
	Engines     []EngineDesc `xml:"engines>engine"`
}

// EngineDesc describes one engine of a component.
type EngineDesc struct {
	Name        string `xml:"name"`
	Language    string `xml:"language"`
	License     string `xml:"license"`
	Author      string `xml:"author"`
	Layout      string `xml:"layout"`
	LongName    string `xml:"longname"`
	Description string `xml:"description"`
	Rank        int    `xml:"rank"`
	Symbol      string `xml:"symbol"`
}

// NewComponent describes the compose engine launched by execLine.
func NewComponent(execLine, version string) Component {
	return Component{
		Name:        BusName,
		Description: "Compose key input method",
		Exec:        execLine,
		Version:     version,
		Author:      "composeim",
		License:     "MIT",
		TextDomain:  "composeim",
		Engines: []EngineDesc{{
			Name:        EngineName,
			Language:    "other",
			License:     "MIT",
			Author:      "composeim",
			Layout:      "default",
			LongName:    "Compose",
			Description: "Compose key sequences",
			Rank:        0,
			Symbol:      "⎄",
		}},
	}
}

// ComponentDir returns the per-user IBus component directory.
func ComponentDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "ibus", "component"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "ibus", "component"), nil
}

// Install writes the component file into dir and returns its path.
func Install(dir string, c Component) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("ibus: create component dir: %w", err)
	}
	data, err := xml.MarshalIndent(c, "", "    ")
	if err != nil {
		return "", fmt.Errorf("ibus: encode component: %w", err)
	}
	path := filepath.Join(dir, componentFile)
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("ibus: write component: %w", err)
	}
	return path, nil
}

// Uninstall removes the component file from dir. A missing file is not an
// error.
func Uninstall(dir string) error {
	err := os.Remove(filepath.Join(dir, componentFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ibus: remove component: %w", err)
	}
	return nil
}
