// Package keys decodes keystrokes from a terminal or a piped stream.
package keys

import (
	"bufio"
	"io"
	"unicode"
)

// Kind classifies a decoded keystroke
type Kind int

const (
	Rune Kind = iota
	Left
	Right
	Up
	Down
	Interrupt
)

const (
	ctrlC = 0x03
	ctrlD = 0x04
	esc   = 0x1b
)

// Key is a single decoded keystroke. Ch is set for Rune keys only and is lower-cased.
type Key struct {
	Kind Kind
	Ch   rune
}

func (k Key) String() string {
	switch k.Kind {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	case Interrupt:
		return "interrupt"
	default:
		return string(k.Ch)
	}
}

// Reader decodes keystrokes. In raw mode every byte arrives as typed,
// in line mode the newline terminating each line is skipped.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next blocks until a meaningful key arrives. Whitespace, Enter and
// unknown escape sequences are skipped.
func (r *Reader) Next() (Key, error) {
	for {
		ch, _, err := r.r.ReadRune()
		if err != nil {
			return Key{}, err
		}

		switch {
		case ch == ctrlC || ch == ctrlD:
			return Key{Kind: Interrupt}, nil
		case ch == esc:
			if key, ok, err := r.escape(); err != nil || ok {
				return key, err
			}
		case unicode.IsSpace(ch) || !unicode.IsPrint(ch):
		default:
			return Key{Kind: Rune, Ch: unicode.ToLower(ch)}, nil
		}
	}
}

// escape decodes the rest of an ESC [ X arrow sequence
func (r *Reader) escape() (Key, bool, error) {
	ch, _, err := r.r.ReadRune()
	if err != nil {
		return Key{}, false, err
	}
	if ch != '[' && ch != 'O' {
		_ = r.r.UnreadRune()
		return Key{}, false, nil
	}

	ch, _, err = r.r.ReadRune()
	if err != nil {
		return Key{}, false, err
	}
	switch ch {
	case 'A':
		return Key{Kind: Up}, true, nil
	case 'B':
		return Key{Kind: Down}, true, nil
	case 'C':
		return Key{Kind: Right}, true, nil
	case 'D':
		return Key{Kind: Left}, true, nil
	}
	return Key{}, false, nil
}
