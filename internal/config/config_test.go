package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/annotation-triage/pkg/overlay"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	cfg := Default()
	cfg.SourceDir = filepath.Join(root, "src")
	for i := range cfg.Categories {
		cfg.Categories[i].Dir = filepath.Join(root, cfg.Categories[i].Name)
	}
	cfg.Save.Dir = filepath.Join(root, "accepted")
	cfg.Normalize()
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.Categories, 3)
	assert.Equal(t, "error", cfg.Categories[0].Name)
	assert.Equal(t, "a", cfg.Categories[0].Key)
	assert.Equal(t, "s", cfg.Categories[1].Key)
	assert.Equal(t, "d", cfg.Categories[2].Key)
	assert.Equal(t, "f", cfg.Save.Key)
	assert.Equal(t, "z", cfg.Keys.Undo)
	assert.Equal(t, "q", cfg.Keys.Quit)
	assert.Equal(t, 600, cfg.Preview.MaxWidth)
	assert.Equal(t, 500, cfg.Preview.MaxHeight)
}

func TestDefault_NeedsFolders(t *testing.T) {
	cfg := Default()
	cfg.Normalize()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_dir is required")
	assert.Contains(t, err.Error(), "category error: dir is required")
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidate_KeyConflicts(t *testing.T) {
	cfg := validConfig(t)
	cfg.Categories[1].Key = "a"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "a" already bound to category error`)

	cfg = validConfig(t)
	cfg.Save.Key = "z"
	assert.ErrorContains(t, cfg.Validate(), "already bound to undo")

	cfg = validConfig(t)
	cfg.Categories[0].Key = "ab"
	assert.ErrorContains(t, cfg.Validate(), "single character")
}

func TestValidate_Dirs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Categories[0].Dir = cfg.SourceDir
	assert.ErrorContains(t, cfg.Validate(), "must differ from source_dir")

	cfg = validConfig(t)
	cfg.Save.Dir = cfg.Categories[2].Dir
	assert.ErrorContains(t, cfg.Validate(), "already used by category single_light")

	cfg = validConfig(t)
	cfg.Categories = append(cfg.Categories, Category{Name: "error", Key: "x", Dir: "/tmp/x"})
	assert.ErrorContains(t, cfg.Validate(), `duplicate category "error"`)
}

func TestValidate_Sections(t *testing.T) {
	cases := map[string]func(*Config){
		"preview.format":          func(c *Config) { c.Preview.Format = "gif" },
		"preview.quality":         func(c *Config) { c.Preview.Quality = 0 },
		"preview.max_width":       func(c *Config) { c.Preview.MaxWidth = 0 },
		"preview.gap":             func(c *Config) { c.Preview.Gap = -1 },
		"logging.level":           func(c *Config) { c.Logging.Level = "loud" },
		"logging.format":          func(c *Config) { c.Logging.Format = "xml" },
		"history.limit":           func(c *Config) { c.History.Limit = -1 },
		"overlay.label_placement": func(c *Config) { c.Overlay.LabelPlacement = "corner" },
		"overlay.polygon_color":   func(c *Config) { c.Overlay.PolygonColor = "green" },
		"overlay.line_thickness":  func(c *Config) { c.Overlay.LineThickness = 0 },
		"overlay.marker_radius":   func(c *Config) { c.Overlay.MarkerRadius = -1 },
	}
	for want, mutate := range cases {
		t.Run(want, func(t *testing.T) {
			cfg := validConfig(t)
			mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), want)
		})
	}
}

func TestOverlayConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Overlay.LabelPlacement = "box"
	cfg.Overlay.PolygonColor = "#0000ff"
	cfg.Overlay.LineThickness = 2

	oc, err := cfg.OverlayConfig()
	require.NoError(t, err)
	assert.Equal(t, overlay.PlaceBox, oc.Placement)
	assert.Equal(t, color.NRGBA{0, 0, 255, 255}, oc.PolygonColor)
	assert.Equal(t, color.NRGBA{255, 0, 0, 255}, oc.PointColor)
	assert.Equal(t, 2, oc.LineThickness)
}

func TestWriteFileAndLoad_RoundTrip(t *testing.T) {
	cfg := validConfig(t)
	cfg.Categories = append(cfg.Categories, Category{Name: "blurry", Key: "b", Dir: filepath.Join(t.TempDir(), "blurry")})
	cfg.History.Limit = 50

	path := filepath.Join(t.TempDir(), "conf", "config.toml")
	require.NoError(t, cfg.WriteFile(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.NoError(t, loaded.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
source_dir = "/data/unreviewed"

[save]
dir = "/data/accepted"

[preview]
format = "WEBP"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean("/data/unreviewed"), cfg.SourceDir)
	assert.Equal(t, "save", cfg.Save.Name)
	assert.Equal(t, "f", cfg.Save.Key)
	assert.Len(t, cfg.Categories, 3)
	assert.Equal(t, "webp", cfg.Preview.Format)
	assert.Equal(t, 90, cfg.Preview.Quality)
	assert.Equal(t, "annotation-triage-preview.webp", filepath.Base(cfg.Preview.Path))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorContains(t, err, "read config file")

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("source_dir = [1,"), 0o644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parse config file")
}

func TestLoadOrDefault(t *testing.T) {
	_, err := LoadOrDefault(filepath.Join(t.TempDir(), "explicit-missing.toml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestSetCategoryDir(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.SetCategoryDir("inaccurate", "/x"))
	assert.Equal(t, "/x", cfg.Categories[1].Dir)
	require.NoError(t, cfg.SetCategoryDir("save", "/y"))
	assert.Equal(t, "/y", cfg.Save.Dir)
	assert.Error(t, cfg.SetCategoryDir("nope", "/z"))
}

func TestParseDestFlag(t *testing.T) {
	name, dir, err := ParseDestFlag(" error = /data/err ")
	require.NoError(t, err)
	assert.Equal(t, "error", name)
	assert.Equal(t, "/data/err", dir)

	for _, bad := range []string{"error", "=dir", "error="} {
		_, _, err := ParseDestFlag(bad)
		assert.Error(t, err, bad)
	}
}
