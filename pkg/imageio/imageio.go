// Package imageio loads review images and writes preview images.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/annotation-triage/internal/fsx"
)

// ErrUnreadable is returned when an image file exists but cannot be decoded
var ErrUnreadable = errors.New("unreadable image")

// Background fills the preview canvas around fitted images
var Background = color.NRGBA{32, 32, 32, 255}

// Info contains basic image metadata
type Info struct {
	Width       int
	Height      int
	AspectRatio float64
}

// GetInfo returns basic information about an image
func GetInfo(img image.Image) Info {
	b := img.Bounds()
	info := Info{Width: b.Dx(), Height: b.Dy()}
	if info.Height > 0 {
		info.AspectRatio = float64(info.Width) / float64(info.Height)
	}
	return info
}

// Load decodes the image at path, applying EXIF orientation.
// Decode failures wrap ErrUnreadable; a missing file keeps its os error.
func Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Decode decodes an image from r with a WebP fallback
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnreadable)
	}

	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%w: unknown or unsupported format", ErrUnreadable)
}

// Fit scales img down to fit inside maxW x maxH keeping the aspect ratio.
// Images that already fit are returned unchanged.
func Fit(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	if maxW <= 0 || maxH <= 0 || (b.Dx() <= maxW && b.Dy() <= maxH) {
		return img
	}
	return imaging.Fit(img, maxW, maxH, imaging.Box)
}

// SideBySide fits both images into maxW x maxH and places them left to right with gap pixels between
func SideBySide(left, right image.Image, maxW, maxH, gap int) *image.NRGBA {
	l := Fit(left, maxW, maxH)
	r := Fit(right, maxW, maxH)
	lb, rb := l.Bounds(), r.Bounds()

	if gap < 0 {
		gap = 0
	}
	canvas := imaging.New(lb.Dx()+gap+rb.Dx(), max(lb.Dy(), rb.Dy()), Background)
	canvas = imaging.Paste(canvas, l, image.Pt(0, 0))
	canvas = imaging.Paste(canvas, r, image.Pt(lb.Dx()+gap, 0))
	return canvas
}

// Options controls preview encoding
type Options struct {
	Format   string
	Quality  int
	Lossless bool
}

// FormatFromPath guesses the output format from the file extension, defaulting to png
func FormatFromPath(path string) string {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "jpg", "jpeg":
		return "jpg"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}

// Encode writes img to w in the requested format
func Encode(w io.Writer, img image.Image, opts Options) error {
	quality := opts.Quality
	if quality < 1 || quality > 100 {
		quality = 90
	}

	switch strings.ToLower(opts.Format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Lossless: opts.Lossless, Quality: float32(quality)})
	case "jpg", "jpeg":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case "png", "":
		return imaging.Encode(w, img, imaging.PNG)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

// Save encodes img to path atomically. An empty Format is taken from the path.
func Save(img image.Image, path string, opts Options) error {
	if opts.Format == "" {
		opts.Format = FormatFromPath(path)
	}
	return fsx.WriteAtomic(path, func(w io.Writer) error {
		return Encode(w, img, opts)
	})
}
