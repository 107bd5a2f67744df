// Package annotation reads sidecar label files.
//
// Each non-blank line holds one record: a class id followed by an even number of
// normalized coordinates, all whitespace separated:
//
//	<class_id> <x1> <y1> <x2> <y2> ...
package annotation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/menta2k/annotation-triage/pkg/types"
)

var (
	// ErrOddCoordinates means a line has an x without its y
	ErrOddCoordinates = errors.New("odd number of coordinates")
	// ErrBadCoordinate means a coordinate token is not a finite number
	ErrBadCoordinate = errors.New("bad coordinate")
	// ErrLineTooLong means a line exceeds MaxLineLength and was not parsed
	ErrLineTooLong = errors.New("line too long")
)

// MaxLineLength bounds a single record line in bytes
const MaxLineLength = 1 << 20

// tooLongPrefix is how much of an overlong line is kept for the LineError
const tooLongPrefix = 40

// LineError describes a malformed line that was skipped
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// SidecarPath returns the label path that belongs to an image
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + types.LabelExt
}

// ParseLine parses a single record
func ParseLine(line string) (types.Annotation, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return types.Annotation{}, fmt.Errorf("empty line")
	}

	coords := fields[1:]
	if len(coords)%2 != 0 {
		return types.Annotation{}, ErrOddCoordinates
	}

	points := make([]types.Point, 0, len(coords)/2)
	for i := 0; i < len(coords); i += 2 {
		x, err := parseCoord(coords[i])
		if err != nil {
			return types.Annotation{}, err
		}
		y, err := parseCoord(coords[i+1])
		if err != nil {
			return types.Annotation{}, err
		}
		points = append(points, types.Point{X: x, Y: y})
	}

	return types.Annotation{ClassID: fields[0], Points: points}, nil
}

// parseCoord accepts finite numbers only
func parseCoord(tok string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadCoordinate, tok)
	}
	return v, nil
}

// Parse reads all records from r. Blank lines are ignored and malformed lines
// are skipped, each one reported as a LineError.
func Parse(r io.Reader) ([]types.Annotation, []*LineError, error) {
	var (
		records []types.Annotation
		bad     []*LineError
	)

	br := bufio.NewReader(r)
	for n := 1; ; n++ {
		line, err := readLine(br)
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrLineTooLong) {
			bad = append(bad, &LineError{Line: n, Text: line, Err: err})
			continue
		}
		if err != nil {
			return records, bad, fmt.Errorf("read annotations: %w", err)
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		rec, err := ParseLine(text)
		if err != nil {
			bad = append(bad, &LineError{Line: n, Text: text, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, bad, nil
}

// readLine returns the next line without its terminator. A line longer than
// MaxLineLength is consumed entirely and reported as ErrLineTooLong along
// with its first bytes.
func readLine(br *bufio.Reader) (string, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, more, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > MaxLineLength {
				tooLong = true
				buf = buf[:tooLongPrefix]
			}
		}
		if !more {
			if tooLong {
				return string(buf), ErrLineTooLong
			}
			return string(buf), nil
		}
	}
}

// Load parses the label file at path. A missing file yields no records and no error.
func Load(path string) ([]types.Annotation, []*LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	return Parse(f)
}
