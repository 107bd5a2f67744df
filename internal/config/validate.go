package config

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"unicode/utf8"

	"github.com/menta2k/annotation-triage/pkg/overlay"
)

// Validate checks if the configuration is usable for a review session
func (c *Config) Validate() error {
	var errs []error

	if c.SourceDir == "" {
		errs = append(errs, errors.New("source_dir is required"))
	}
	if len(c.Categories) == 0 {
		errs = append(errs, errors.New("at least one category is required"))
	}

	names := map[string]bool{}
	keys := map[string]string{}
	bind := func(key, owner string) {
		if !validKey(key) {
			errs = append(errs, fmt.Errorf("%s: key %q must be a single character", owner, key))
			return
		}
		if prev, dup := keys[key]; dup {
			errs = append(errs, fmt.Errorf("%s: key %q already bound to %s", owner, key, prev))
			return
		}
		keys[key] = owner
	}
	bind(c.Keys.Undo, "undo")
	bind(c.Keys.Quit, "quit")

	targets := append(append([]Category(nil), c.Categories...), c.Save)
	dirs := map[string]string{}
	for _, cat := range targets {
		owner := "category " + cat.Name
		if cat.Name == "" {
			errs = append(errs, errors.New("category name is required"))
			continue
		}
		if names[cat.Name] {
			errs = append(errs, fmt.Errorf("duplicate category %q", cat.Name))
			continue
		}
		names[cat.Name] = true
		bind(cat.Key, owner)

		if cat.Dir == "" {
			errs = append(errs, fmt.Errorf("%s: dir is required", owner))
			continue
		}
		dir := filepath.Clean(cat.Dir)
		if c.SourceDir != "" && dir == filepath.Clean(c.SourceDir) {
			errs = append(errs, fmt.Errorf("%s: dir must differ from source_dir", owner))
		}
		if prev, dup := dirs[dir]; dup {
			errs = append(errs, fmt.Errorf("%s: dir already used by %s", owner, prev))
		}
		dirs[dir] = owner
	}

	if _, err := c.OverlayConfig(); err != nil {
		errs = append(errs, err)
	}

	switch c.Preview.Format {
	case "png", "jpg", "jpeg", "webp":
	default:
		errs = append(errs, fmt.Errorf("preview.format %q must be png, jpg or webp", c.Preview.Format))
	}
	if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
		errs = append(errs, errors.New("preview.quality must be between 1 and 100"))
	}
	if c.Preview.MaxWidth < 1 || c.Preview.MaxHeight < 1 {
		errs = append(errs, errors.New("preview.max_width and preview.max_height must be positive"))
	}
	if c.Preview.Gap < 0 {
		errs = append(errs, errors.New("preview.gap must not be negative"))
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not supported", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be console or json", c.Logging.Format))
	}

	if c.History.Limit < 0 {
		errs = append(errs, errors.New("history.limit must not be negative"))
	}

	return errors.Join(errs...)
}

// OverlayConfig converts the overlay section into renderer settings
func (c *Config) OverlayConfig() (overlay.Config, error) {
	cfg := overlay.DefaultConfig()
	var err error

	if cfg.Placement, err = overlay.ParsePlacement(c.Overlay.LabelPlacement); err != nil {
		return cfg, fmt.Errorf("overlay.label_placement: %w", err)
	}
	colors := []struct {
		name string
		raw  string
		dst  *color.NRGBA
	}{
		{"overlay.polygon_color", c.Overlay.PolygonColor, &cfg.PolygonColor},
		{"overlay.point_color", c.Overlay.PointColor, &cfg.PointColor},
		{"overlay.text_color", c.Overlay.TextColor, &cfg.TextColor},
	}
	for _, col := range colors {
		if col.raw == "" {
			continue
		}
		if *col.dst, err = overlay.ParseColor(col.raw); err != nil {
			return cfg, fmt.Errorf("%s: %w", col.name, err)
		}
	}

	if c.Overlay.MarkerRadius < 0 {
		return cfg, errors.New("overlay.marker_radius must not be negative")
	}
	if c.Overlay.LineThickness < 1 {
		return cfg, errors.New("overlay.line_thickness must be at least 1")
	}
	cfg.MarkerRadius = c.Overlay.MarkerRadius
	cfg.LineThickness = c.Overlay.LineThickness
	return cfg, nil
}

func validKey(k string) bool {
	return utf8.RuneCountInString(k) == 1
}
