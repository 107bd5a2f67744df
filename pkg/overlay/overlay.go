// Package overlay draws annotation records on top of an image.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/annotation-triage/pkg/types"
)

// Placement selects where the class label text goes
type Placement string

const (
	// PlacePoint puts the text just below-right of the first point
	PlacePoint Placement = "point"
	// PlaceBox puts the text above the bounding box of the points
	PlaceBox Placement = "box"
)

// textOffset is how far the label sits from the first point with PlacePoint
const textOffset = 5

// Config holds drawing parameters
type Config struct {
	PolygonColor  color.NRGBA
	PointColor    color.NRGBA
	TextColor     color.NRGBA
	MarkerRadius  int
	LineThickness int
	Placement     Placement
}

// DefaultConfig returns green quads, red point markers and white class text
func DefaultConfig() Config {
	return Config{
		PolygonColor:  color.NRGBA{0, 255, 0, 255},
		PointColor:    color.NRGBA{255, 0, 0, 255},
		TextColor:     color.NRGBA{255, 255, 255, 255},
		MarkerRadius:  2,
		LineThickness: 1,
		Placement:     PlacePoint,
	}
}

// ParsePlacement validates a placement name. Empty means PlacePoint.
func ParsePlacement(s string) (Placement, error) {
	switch Placement(strings.ToLower(strings.TrimSpace(s))) {
	case "", PlacePoint:
		return PlacePoint, nil
	case PlaceBox:
		return PlaceBox, nil
	default:
		return "", fmt.Errorf("unknown label placement %q (use point or box)", s)
	}
}

// ParseColor parses #rrggbb or #rrggbbaa
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// Renderer draws annotations
type Renderer struct {
	config Config
	face   font.Face
}

// New creates a Renderer with default configuration
func New() *Renderer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a Renderer with custom configuration
func NewWithConfig(config Config) *Renderer {
	if config.LineThickness < 1 {
		config.LineThickness = 1
	}
	if config.MarkerRadius < 0 {
		config.MarkerRadius = 0
	}
	if config.Placement == "" {
		config.Placement = PlacePoint
	}
	return &Renderer{config: config, face: basicfont.Face7x13}
}

// Config returns the active configuration
func (r *Renderer) Config() Config {
	return r.config
}

// Render returns a copy of img with the records drawn on it. img is not modified.
func (r *Renderer) Render(img image.Image, records []types.Annotation) *image.NRGBA {
	dst := imaging.Clone(img)
	w := dst.Bounds().Dx()
	h := dst.Bounds().Dy()

	for _, rec := range records {
		pts := toPixels(rec.Points, w, h)

		if len(pts) >= 4 {
			quad := pts[:4]
			for i := range quad {
				r.drawLine(dst, quad[i], quad[(i+1)%len(quad)], r.config.PolygonColor)
			}
		}

		for _, p := range pts {
			fillCircle(dst, p, r.config.MarkerRadius, r.config.PointColor)
		}

		if len(pts) > 0 {
			r.drawLabel(dst, "ID: "+rec.ClassID, r.labelOrigin(pts))
		}
	}

	return dst
}

// Normalized coordinates are clamped to [minNorm, maxNorm] before scaling, so
// points far outside the image still give segments of bounded length.
const (
	minNorm = -1.0
	maxNorm = 2.0
)

// toPixels scales normalized points by the image size, truncating toward zero
func toPixels(points []types.Point, w, h int) []image.Point {
	out := make([]image.Point, len(points))
	for i, p := range points {
		out[i] = image.Pt(int(clampNorm(p.X)*float64(w)), int(clampNorm(p.Y)*float64(h)))
	}
	return out
}

func clampNorm(v float64) float64 {
	if math.IsNaN(v) {
		return minNorm
	}
	return math.Max(minNorm, math.Min(maxNorm, v))
}

// labelOrigin returns the text baseline start
func (r *Renderer) labelOrigin(pts []image.Point) image.Point {
	if r.config.Placement != PlaceBox {
		return pts[0].Add(image.Pt(textOffset, textOffset))
	}

	minX, minY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
	}
	m := r.face.Metrics()
	y := minY - m.Descent.Ceil() - 1
	if top := m.Ascent.Ceil(); y < top {
		y = top
	}
	return image.Pt(max(minX, 0), y)
}

func (r *Renderer) drawLabel(dst *image.NRGBA, text string, origin image.Point) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(r.config.TextColor),
		Face: r.face,
		Dot:  fixed.P(origin.X, origin.Y),
	}
	d.DrawString(text)
}

// drawLine rasterizes a segment with Bresenham, stamping a square brush for thick lines
func (r *Renderer) drawLine(img *image.NRGBA, a, b image.Point, c color.NRGBA) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	x, y := a.X, a.Y
	for {
		r.stamp(img, x, y, c)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func (r *Renderer) stamp(img *image.NRGBA, x, y int, c color.NRGBA) {
	t := r.config.LineThickness
	if t == 1 {
		setPixel(img, x, y, c)
		return
	}
	off := (t - 1) / 2
	for yy := y - off; yy < y-off+t; yy++ {
		for xx := x - off; xx < x-off+t; xx++ {
			setPixel(img, xx, yy, c)
		}
	}
}

func fillCircle(img *image.NRGBA, center image.Point, radius int, c color.NRGBA) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				setPixel(img, center.X+dx, center.Y+dy, c)
			}
		}
	}
}

func setPixel(img *image.NRGBA, x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= img.Bounds().Dx() || y >= img.Bounds().Dy() {
		return
	}
	i := y*img.Stride + x*4
	img.Pix[i+0] = c.R
	img.Pix[i+1] = c.G
	img.Pix[i+2] = c.B
	img.Pix[i+3] = c.A
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
