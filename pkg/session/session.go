// Package session drives one review pass over a source folder: it tracks the
// file list and the current position, dispatches navigation, sort and undo
// commands, and loads the current image with its annotation overlay.
package session

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"

	"github.com/menta2k/annotation-triage/internal/scan"
	"github.com/menta2k/annotation-triage/pkg/annotation"
	"github.com/menta2k/annotation-triage/pkg/history"
	"github.com/menta2k/annotation-triage/pkg/imageio"
	"github.com/menta2k/annotation-triage/pkg/overlay"
	"github.com/menta2k/annotation-triage/pkg/sorter"
	"github.com/menta2k/annotation-triage/pkg/types"
)

var (
	// ErrNoImages means the source folder has nothing left to review
	ErrNoImages = errors.New("no images to review")
	// ErrUnreadableImage means the current image could not be decoded and was skipped
	ErrUnreadableImage = errors.New("unreadable image")
)

// Options configures a Session
type Options struct {
	Sorter   *sorter.Sorter
	History  *history.Log
	Renderer *overlay.Renderer
	// Extensions selects image files; empty means scan.DefaultExtensions
	Extensions []string
	// SaveDestination names the sorter destination used by Save
	SaveDestination string
	Logger          zerolog.Logger
}

// View is everything needed to present the current image
type View struct {
	Name      string
	Path      string
	Position  int // 1-based
	Total     int
	Original  image.Image
	Annotated *image.NRGBA
	Records   []types.Annotation
	Warnings  []*annotation.LineError
	// Notices collects recoverable problems hit while loading this view
	Notices []error
}

// Stats summarizes the work done in this session
type Stats struct {
	Sorted    map[string]int
	UndoDepth int
	Remaining int
	Skipped   int
}

// Session is the review state for one source folder
type Session struct {
	sorter   *sorter.Sorter
	history  *history.Log
	renderer *overlay.Renderer
	matcher  scan.Matcher
	saveDest string
	logger   zerolog.Logger

	files   []string
	index   int
	skip    map[string]bool
	counts  map[string]int
	done    bool
	pending []error
}

// New scans the source folder of opts.Sorter and positions on the first image
func New(opts Options) (*Session, error) {
	if opts.Sorter == nil {
		return nil, errors.New("session needs a sorter")
	}
	if opts.SaveDestination != "" {
		if _, ok := opts.Sorter.Destination(opts.SaveDestination); !ok {
			return nil, fmt.Errorf("%w: save destination %q", sorter.ErrInvalidDestination, opts.SaveDestination)
		}
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = scan.DefaultExtensions
	}

	s := &Session{
		sorter:   opts.Sorter,
		history:  opts.History,
		renderer: opts.Renderer,
		matcher:  scan.NewMatcher(exts),
		saveDest: opts.SaveDestination,
		logger:   opts.Logger,
		skip:     map[string]bool{},
		counts:   map[string]int{},
	}
	if s.history == nil {
		s.history = history.New(history.WithLogger(opts.Logger))
	}
	if s.renderer == nil {
		s.renderer = overlay.New()
	}

	if err := s.refresh(); err != nil {
		return nil, err
	}
	if len(s.files) == 0 {
		return nil, ErrNoImages
	}
	s.logger.Info().Str("source", s.sorter.SourceDir()).Int("images", len(s.files)).Msg("session started")
	return s, nil
}

// Files returns the current review list
func (s *Session) Files() []string {
	return slices.Clone(s.files)
}

// Index returns the 0-based position in Files
func (s *Session) Index() int {
	return s.index
}

// Current returns the name of the image under review
func (s *Session) Current() (string, bool) {
	if len(s.files) == 0 {
		return "", false
	}
	s.clamp()
	return s.files[s.index], true
}

// Done reports whether Quit was dispatched
func (s *Session) Done() bool {
	return s.done
}

// History exposes the undo log
func (s *Session) History() *history.Log {
	return s.history
}

// Stats returns per-destination counts for this session
func (s *Session) Stats() Stats {
	sorted := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		if v > 0 {
			sorted[k] = v
		}
	}
	return Stats{
		Sorted:    sorted,
		UndoDepth: s.history.Len(),
		Remaining: len(s.files),
		Skipped:   len(s.skip),
	}
}

// Load returns the view for the current image. Files that disappeared are
// dropped from the list and files that fail to decode are skipped for the rest
// of the session; both are reported as notices. ErrNoImages ends the session.
func (s *Session) Load() (*View, error) {
	notices := s.pending
	s.pending = nil

	for {
		if len(s.files) == 0 {
			return nil, ErrNoImages
		}
		s.clamp()
		name := s.files[s.index]
		path := filepath.Join(s.sorter.SourceDir(), name)

		img, err := imageio.Load(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				notices = append(notices, fmt.Errorf("%w: %s", sorter.ErrMissingFile, name))
				s.logger.Warn().Str("file", name).Msg("image disappeared, refreshing list")
			} else {
				s.skip[name] = true
				notices = append(notices, fmt.Errorf("%w: %s: %w", ErrUnreadableImage, name, err))
				s.logger.Warn().Err(err).Str("file", name).Msg("skipping unreadable image")
			}
			if err := s.refresh(); err != nil {
				return nil, err
			}
			// still listed but not loadable, so the refresh cannot make progress
			if !s.skip[name] && slices.Contains(s.files, name) {
				s.skip[name] = true
				if err := s.refresh(); err != nil {
					return nil, err
				}
			}
			continue
		}

		records, warnings, err := annotation.Load(annotation.SidecarPath(path))
		if err != nil {
			notices = append(notices, fmt.Errorf("labels for %s: %w", name, err))
			s.logger.Warn().Err(err).Str("file", name).Msg("cannot read labels")
		}
		for _, w := range warnings {
			s.logger.Debug().Str("file", name).Int("line", w.Line).Err(w.Err).Msg("skipped annotation line")
		}

		return &View{
			Name:      name,
			Path:      path,
			Position:  s.index + 1,
			Total:     len(s.files),
			Original:  img,
			Annotated: s.renderer.Render(img, records),
			Records:   records,
			Warnings:  warnings,
			Notices:   notices,
		}, nil
	}
}

func (s *Session) clamp() {
	s.index = max(0, min(s.index, len(s.files)-1))
}

func (s *Session) refresh() error {
	files, err := s.matcher.ListImages(s.sorter.SourceDir(), s.skip)
	if err != nil {
		return fmt.Errorf("list %s: %w", s.sorter.SourceDir(), err)
	}
	s.files = files
	return nil
}
