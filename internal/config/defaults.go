package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default returns the configuration with the stock bindings:
// a/s/d for the error, inaccurate and single_light categories, f to save, z to undo, q to quit.
func Default() *Config {
	return &Config{
		Extensions: []string{".png", ".jpg", ".jpeg", ".bmp"},
		Categories: []Category{
			{Name: "error", Key: "a"},
			{Name: "inaccurate", Key: "s"},
			{Name: "single_light", Key: "d"},
		},
		Save: Category{Name: "save", Key: "f"},
		Keys: Keys{Undo: "z", Quit: "q"},
		Overlay: Overlay{
			LabelPlacement: "point",
			MarkerRadius:   2,
			LineThickness:  1,
			PolygonColor:   "#00ff00",
			PointColor:     "#ff0000",
			TextColor:      "#ffffff",
		},
		Preview: Preview{
			MaxWidth:  600,
			MaxHeight: 500,
			Gap:       20,
			Format:    "png",
			Quality:   90,
		},
		Logging: Logging{Level: "info", Format: "console"},
	}
}

// Normalize trims values, lower-cases keys and fills derived defaults
func (c *Config) Normalize() {
	c.SourceDir = expandPath(c.SourceDir)
	for i := range c.Categories {
		c.Categories[i].Name = strings.TrimSpace(c.Categories[i].Name)
		c.Categories[i].Key = normalizeKey(c.Categories[i].Key)
		c.Categories[i].Dir = expandPath(c.Categories[i].Dir)
	}
	c.Save.Name = strings.TrimSpace(c.Save.Name)
	if c.Save.Name == "" {
		c.Save.Name = "save"
	}
	c.Save.Key = normalizeKey(c.Save.Key)
	c.Save.Dir = expandPath(c.Save.Dir)
	c.Keys.Undo = normalizeKey(c.Keys.Undo)
	c.Keys.Quit = normalizeKey(c.Keys.Quit)

	c.Preview.Format = strings.ToLower(strings.TrimSpace(c.Preview.Format))
	if c.Preview.Format == "" {
		c.Preview.Format = "png"
	}
	c.Preview.Path = expandPath(c.Preview.Path)
	if c.Preview.Path == "" {
		c.Preview.Path = filepath.Join(os.TempDir(), "annotation-triage-preview."+c.Preview.Format)
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.File = expandPath(c.Logging.File)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

func expandPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return filepath.Clean(p)
}
