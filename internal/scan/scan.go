package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are the image types reviewed by default
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// Matcher decides which file names count as reviewable images
type Matcher struct {
	exts map[string]struct{}
}

// NewMatcher builds a Matcher for the given extensions. Extensions are compared
// case-insensitively and may be given with or without the leading dot.
func NewMatcher(exts []string) Matcher {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	m := Matcher{exts: make(map[string]struct{}, len(exts))}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.exts[ext] = struct{}{}
	}
	return m
}

// IsImage checks the file extension
func (m Matcher) IsImage(name string) bool {
	_, ok := m.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// ListImages returns the sorted base names of image files directly inside dir.
// Subdirectories are not descended into and names in skip are left out.
// Symlinks are listed only when they resolve to a regular file.
func (m Matcher) ListImages(dir string, skip map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !m.IsImage(name) || skip[name] || !isRegular(dir, e) {
			continue
		}
		names = append(names, name)
	}

	sort.Strings(names)
	return names, nil
}

func isRegular(dir string, e fs.DirEntry) bool {
	if e.Type().IsRegular() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.Mode().IsRegular()
}

// FolderSummary describes the contents of a triage folder
type FolderSummary struct {
	Images int
	Labels int
	Bytes  int64
}

// Summarize counts images and sidecar labels in dir. A missing dir is an empty summary.
func (m Matcher) Summarize(dir string) (FolderSummary, error) {
	var s FolderSummary
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case m.IsImage(name):
			s.Images++
		case strings.EqualFold(filepath.Ext(name), ".txt"):
			s.Labels++
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			return s, err
		}
		s.Bytes += info.Size()
	}
	return s, nil
}
