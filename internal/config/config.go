// Package config loads and validates the triage configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Category is a rejection folder bound to a key
type Category struct {
	Name string `toml:"name"`
	Key  string `toml:"key"`
	Dir  string `toml:"dir"`
}

// Keys holds the non-category bindings
type Keys struct {
	Undo string `toml:"undo"`
	Quit string `toml:"quit"`
}

// Overlay holds annotation drawing settings
type Overlay struct {
	LabelPlacement string `toml:"label_placement"`
	MarkerRadius   int    `toml:"marker_radius"`
	LineThickness  int    `toml:"line_thickness"`
	PolygonColor   string `toml:"polygon_color"`
	PointColor     string `toml:"point_color"`
	TextColor      string `toml:"text_color"`
}

// Preview holds settings for the side-by-side preview file
type Preview struct {
	Path      string `toml:"path"`
	MaxWidth  int    `toml:"max_width"`
	MaxHeight int    `toml:"max_height"`
	Gap       int    `toml:"gap"`
	Format    string `toml:"format"`
	Quality   int    `toml:"quality"`
	Lossless  bool   `toml:"lossless"`
}

// Logging holds log output settings
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// History holds undo settings
type History struct {
	Limit int `toml:"limit"`
}

// Config holds the application configuration
type Config struct {
	SourceDir  string     `toml:"source_dir"`
	Extensions []string   `toml:"extensions"`
	Categories []Category `toml:"categories"`
	Save       Category   `toml:"save"`
	Keys       Keys       `toml:"keys"`
	Overlay    Overlay    `toml:"overlay"`
	Preview    Preview    `toml:"preview"`
	Logging    Logging    `toml:"logging"`
	History    History    `toml:"history"`
}

// Load reads path on top of the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to the defaults otherwise.
// An empty path means DefaultPath.
func LoadOrDefault(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg := Default()
			cfg.Normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return Load(path)
}

// WriteFile writes the configuration as TOML
func (c *Config) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// SetCategoryDir points the named category (or the save target) at dir
func (c *Config) SetCategoryDir(name, dir string) error {
	if name == c.Save.Name {
		c.Save.Dir = dir
		return nil
	}
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			c.Categories[i].Dir = dir
			return nil
		}
	}
	return fmt.Errorf("unknown category %q", name)
}

// ParseDestFlag splits a name=dir flag value
func ParseDestFlag(v string) (string, string, error) {
	name, dir, ok := strings.Cut(v, "=")
	name, dir = strings.TrimSpace(name), strings.TrimSpace(dir)
	if !ok || name == "" || dir == "" {
		return "", "", fmt.Errorf("destination %q: want name=dir", v)
	}
	return name, dir, nil
}

// DefaultPath returns the default configuration file path
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "annotation-triage.toml"
	}
	return filepath.Join(dir, "annotation-triage", "config.toml")
}
