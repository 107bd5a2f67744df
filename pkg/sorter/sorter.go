// Package sorter moves reviewed images into their outcome folders.
//
// Every sorted image is renamed to image_<N><ext> inside its destination, and
// its sidecar label (same stem, .txt) follows it as image_<N>.txt. N is one
// past the largest index already present in the destination, bumped further
// while a file with the candidate name exists.
package sorter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/menta2k/annotation-triage/internal/fsx"
	"github.com/menta2k/annotation-triage/pkg/annotation"
	"github.com/menta2k/annotation-triage/pkg/types"
)

// NamePrefix starts every sorted file name
const NamePrefix = "image_"

var (
	// ErrInvalidDestination means the destination name is not configured
	ErrInvalidDestination = errors.New("invalid destination")
	// ErrMissingFile means the image is no longer in the source folder
	ErrMissingFile = errors.New("missing file")
)

// Destination is a named outcome folder
type Destination struct {
	Name string
	Dir  string
	Kind types.OperationKind
}

// Sorter relocates images out of a source folder
type Sorter struct {
	sourceDir    string
	destinations map[string]Destination
	logger       zerolog.Logger
	now          func() time.Time
	move         func(src, dst string) error
}

// Option customizes a Sorter
type Option func(*Sorter)

// WithLogger sets the logger used for move events
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sorter) { s.logger = l }
}

// New creates a Sorter and makes sure every destination folder exists
func New(sourceDir string, destinations []Destination, opts ...Option) (*Sorter, error) {
	s := &Sorter{
		sourceDir:    filepath.Clean(sourceDir),
		destinations: make(map[string]Destination, len(destinations)),
		logger:       zerolog.Nop(),
		now:          time.Now,
		move:         fsx.Move,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, d := range destinations {
		if d.Name == "" || d.Dir == "" {
			return nil, fmt.Errorf("%w: destination needs a name and a folder", ErrInvalidDestination)
		}
		if _, dup := s.destinations[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate destination %q", ErrInvalidDestination, d.Name)
		}
		if d.Kind == "" {
			d.Kind = types.OpMove
		}
		d.Dir = filepath.Clean(d.Dir)
		if err := os.MkdirAll(d.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create destination %q: %w", d.Name, err)
		}
		s.destinations[d.Name] = d
	}
	return s, nil
}

// SourceDir returns the folder images are sorted out of
func (s *Sorter) SourceDir() string {
	return s.sourceDir
}

// Destinations returns the configured destinations ordered by name
func (s *Sorter) Destinations() []Destination {
	out := make([]Destination, 0, len(s.destinations))
	for _, d := range s.destinations {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Destination looks up a destination by name
func (s *Sorter) Destination(name string) (Destination, bool) {
	d, ok := s.destinations[name]
	return d, ok
}

// Sort moves image (a file name inside the source folder) and its sidecar label
// into the named destination. Either both files move or neither does.
func (s *Sorter) Sort(image, destination string) (types.Operation, error) {
	dest, ok := s.destinations[destination]
	if !ok {
		return types.Operation{}, fmt.Errorf("%w: %q", ErrInvalidDestination, destination)
	}

	srcImg := filepath.Join(s.sourceDir, filepath.Base(image))
	if !fsx.Exists(srcImg) {
		return types.Operation{}, fmt.Errorf("%w: %s", ErrMissingFile, filepath.Base(image))
	}

	ext := filepath.Ext(srcImg)
	n, err := NextIndex(dest.Dir, ext)
	if err != nil {
		return types.Operation{}, fmt.Errorf("scan %s: %w", dest.Dir, err)
	}
	stem := NamePrefix + strconv.Itoa(n)

	op := types.Operation{
		Kind:        dest.Kind,
		Destination: dest.Name,
		SourceImage: srcImg,
		DestImage:   filepath.Join(dest.Dir, stem+ext),
		At:          s.now(),
	}

	srcLabel := annotation.SidecarPath(srcImg)
	hasLabel := fsx.Exists(srcLabel)
	if hasLabel {
		op.SourceLabel = srcLabel
		op.DestLabel = filepath.Join(dest.Dir, stem+types.LabelExt)
	}

	if err := s.move(op.SourceImage, op.DestImage); err != nil {
		return types.Operation{}, fmt.Errorf("move image: %w", err)
	}
	if hasLabel {
		if err := s.move(op.SourceLabel, op.DestLabel); err != nil {
			if rbErr := s.move(op.DestImage, op.SourceImage); rbErr != nil {
				s.logger.Error().Err(rbErr).Str("image", op.DestImage).Msg("rollback of image move failed")
				return types.Operation{}, fmt.Errorf("move label: %w (rollback failed: %v)", err, rbErr)
			}
			return types.Operation{}, fmt.Errorf("move label: %w", err)
		}
	}

	s.logger.Info().
		Str("kind", string(op.Kind)).
		Str("destination", op.Destination).
		Str("from", filepath.Base(op.SourceImage)).
		Str("to", op.DestImage).
		Bool("label", hasLabel).
		Msg("sorted image")
	return op, nil
}

// NextIndex returns the index for the next image_<N> in dir: one past the largest
// existing N (1 when none), bumped while image_<N><ext> or image_<N>.txt exists.
func NextIndex(dir, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	highest := 0
	for _, e := range entries {
		if n, ok := ParseIndex(e.Name()); ok && n > highest {
			highest = n
		}
	}

	n := highest + 1
	for taken(dir, NamePrefix+strconv.Itoa(n), ext) {
		n++
	}
	return n, nil
}

// ParseIndex extracts N from a name of the form image_<N> or image_<N>.<ext>
func ParseIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, NamePrefix)
	if !ok {
		return 0, false
	}
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" || strings.TrimLeft(rest, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func taken(dir, stem, ext string) bool {
	for _, name := range []string{stem + ext, stem + types.LabelExt} {
		if _, err := os.Lstat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}
