package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// terminal is the review input. On a TTY it switches to raw mode so each
// keystroke arrives without Enter; otherwise keys are read line by line.
type terminal struct {
	in      io.Reader
	out     io.Writer
	raw     bool
	restore func() error
}

func openTerminal(in *os.File, out io.Writer) (*terminal, error) {
	t := &terminal{in: in, out: out, restore: func() error { return nil }}
	if !isTerminal(in) {
		return t, nil
	}

	fd := int(in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enable raw mode: %w", err)
	}
	t.raw = true
	t.out = crlfWriter{w: out}
	t.restore = func() error { return term.Restore(fd, state) }
	return t, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// crlfWriter turns \n into \r\n, raw mode disables that translation
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
