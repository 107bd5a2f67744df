// Package triage ties together the pieces of a keyboard-driven review of
// annotated image folders.
//
// A reviewer walks through the images of a source folder, looks at each one
// with its sidecar polygon labels drawn on top, and sorts it into a rejection
// category or into the save folder. Sorted files are renamed to image_<N>
// inside their destination, and every sort can be undone.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		triage "github.com/menta2k/annotation-triage"
//		"github.com/menta2k/annotation-triage/internal/config"
//		"github.com/menta2k/annotation-triage/pkg/session"
//		"github.com/rs/zerolog"
//	)
//
//	func main() {
//		cfg := config.Default()
//		cfg.SourceDir = "/data/unreviewed"
//		cfg.SetCategoryDir("error", "/data/error")
//		cfg.SetCategoryDir("inaccurate", "/data/inaccurate")
//		cfg.SetCategoryDir("single_light", "/data/single_light")
//		cfg.SetCategoryDir("save", "/data/accepted")
//
//		t, err := triage.New(cfg, zerolog.Nop())
//		if err != nil {
//			log.Fatal(err)
//		}
//		s, err := t.NewSession()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		view, err := s.Load()
//		if err != nil {
//			log.Fatal(err)
//		}
//		if err := t.WritePreview(view); err != nil {
//			log.Fatal(err)
//		}
//
//		// reject the first image, then change our mind
//		if err := s.Dispatch(session.SortTo("error")); err != nil {
//			log.Fatal(err)
//		}
//		if err := s.Dispatch(session.Undo()); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The package consists of these components:
//
//  1. Annotation (pkg/annotation): parses sidecar label files
//  2. Overlay (pkg/overlay): draws polygons, point markers and class ids
//  3. Sorter (pkg/sorter): moves an image and its label to image_<N> names
//  4. History (pkg/history): the undo stack of sort operations
//  5. Session (pkg/session): review state and command dispatch
package triage

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/menta2k/annotation-triage/internal/config"
	"github.com/menta2k/annotation-triage/internal/scan"
	"github.com/menta2k/annotation-triage/pkg/annotation"
	"github.com/menta2k/annotation-triage/pkg/history"
	"github.com/menta2k/annotation-triage/pkg/imageio"
	"github.com/menta2k/annotation-triage/pkg/overlay"
	"github.com/menta2k/annotation-triage/pkg/session"
	"github.com/menta2k/annotation-triage/pkg/sorter"
	"github.com/menta2k/annotation-triage/pkg/types"
)

// Version of the triage tool
const Version = "1.0.0"

// Triage builds sessions and renders previews from one configuration
type Triage struct {
	config   *config.Config
	renderer *overlay.Renderer
	matcher  scan.Matcher
	logger   zerolog.Logger
}

// New creates a Triage. Only the overlay section is checked here; folder
// settings are validated when a session or sorter is created.
func New(cfg *config.Config, logger zerolog.Logger) (*Triage, error) {
	if cfg == nil {
		cfg = config.Default()
		cfg.Normalize()
	}
	oc, err := cfg.OverlayConfig()
	if err != nil {
		return nil, err
	}
	return &Triage{
		config:   cfg,
		renderer: overlay.NewWithConfig(oc),
		matcher:  scan.NewMatcher(cfg.Extensions),
		logger:   logger,
	}, nil
}

// Config returns the configuration in use
func (t *Triage) Config() *config.Config {
	return t.config
}

// Destinations lists the sort targets: every category plus the save folder
func (t *Triage) Destinations() []sorter.Destination {
	out := make([]sorter.Destination, 0, len(t.config.Categories)+1)
	for _, c := range t.config.Categories {
		out = append(out, sorter.Destination{Name: c.Name, Dir: c.Dir, Kind: types.OpMove})
	}
	if t.config.Save.Dir != "" {
		out = append(out, sorter.Destination{Name: t.config.Save.Name, Dir: t.config.Save.Dir, Kind: types.OpSave})
	}
	return out
}

// NewSorter validates the configuration and creates the destination folders
func (t *Triage) NewSorter() (*sorter.Sorter, error) {
	if err := t.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return sorter.New(t.config.SourceDir, t.Destinations(), sorter.WithLogger(t.logger))
}

// NewSession starts a review of the configured source folder
func (t *Triage) NewSession() (*session.Session, error) {
	s, err := t.NewSorter()
	if err != nil {
		return nil, err
	}
	return session.New(session.Options{
		Sorter:          s,
		History:         history.New(history.WithLimit(t.config.History.Limit), history.WithLogger(t.logger)),
		Renderer:        t.renderer,
		Extensions:      t.config.Extensions,
		SaveDestination: t.config.Save.Name,
		Logger:          t.logger,
	})
}

// Render draws records on a copy of img
func (t *Triage) Render(img image.Image, records []types.Annotation) *image.NRGBA {
	return t.renderer.Render(img, records)
}

// RenderResult describes a rendered annotation overlay
type RenderResult struct {
	Info     imageio.Info
	Records  int
	Warnings []*annotation.LineError
	Output   string
}

// RenderFile draws the sidecar labels of imagePath and writes the result to outPath.
// The format follows the extension of outPath.
func (t *Triage) RenderFile(imagePath, outPath string) (RenderResult, error) {
	img, err := imageio.Load(imagePath)
	if err != nil {
		return RenderResult{}, fmt.Errorf("failed to load image: %w", err)
	}
	records, warnings, err := annotation.Load(annotation.SidecarPath(imagePath))
	if err != nil {
		return RenderResult{}, fmt.Errorf("failed to read labels: %w", err)
	}

	opts := t.encodeOptions()
	opts.Format = imageio.FormatFromPath(outPath)
	if err := imageio.Save(t.Render(img, records), outPath, opts); err != nil {
		return RenderResult{}, fmt.Errorf("failed to save overlay: %w", err)
	}
	return RenderResult{
		Info:     imageio.GetInfo(img),
		Records:  len(records),
		Warnings: warnings,
		Output:   outPath,
	}, nil
}

// WritePreview writes the original and annotated images of v side by side to the preview path
func (t *Triage) WritePreview(v *session.View) error {
	p := t.config.Preview
	canvas := imageio.SideBySide(v.Original, v.Annotated, p.MaxWidth, p.MaxHeight, p.Gap)
	if err := imageio.Save(canvas, p.Path, t.encodeOptions()); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}

// PreviewPath returns where WritePreview writes
func (t *Triage) PreviewPath() string {
	return t.config.Preview.Path
}

// FolderStatus summarizes one folder taking part in the triage
type FolderStatus struct {
	Name   string
	Key    string
	Dir    string
	Images int
	Labels int
	Bytes  int64
}

// Status counts the images and labels in the source folder and every destination.
// Folders without a configured path are listed with zero counts.
func (t *Triage) Status() ([]FolderStatus, error) {
	rows := []FolderStatus{{Name: "source", Dir: t.config.SourceDir}}
	for _, c := range t.config.Categories {
		rows = append(rows, FolderStatus{Name: c.Name, Key: c.Key, Dir: c.Dir})
	}
	rows = append(rows, FolderStatus{Name: t.config.Save.Name, Key: t.config.Save.Key, Dir: t.config.Save.Dir})

	for i := range rows {
		if rows[i].Dir == "" {
			continue
		}
		sum, err := t.matcher.Summarize(rows[i].Dir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", filepath.Clean(rows[i].Dir), err)
		}
		rows[i].Images, rows[i].Labels, rows[i].Bytes = sum.Images, sum.Labels, sum.Bytes
	}
	return rows, nil
}

func (t *Triage) encodeOptions() imageio.Options {
	p := t.config.Preview
	return imageio.Options{Format: p.Format, Quality: p.Quality, Lossless: p.Lossless}
}

// GetVersion returns the tool version
func GetVersion() string {
	return Version
}
