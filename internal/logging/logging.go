// Package logging builds the zerolog loggers used by the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options selects level, output format and an optional log file
type Options struct {
	Level  string
	Format string
	File   string
	// Out defaults to os.Stderr
	Out io.Writer
}

// ParseLevel maps a level name to a zerolog level, unknown names fall back to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger. The returned close func releases the log file, if any.
func New(opts Options) (zerolog.Logger, func() error, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	var console io.Writer = out
	if opts.Format != "json" {
		console = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.TimeOnly,
			NoColor:    out != os.Stderr,
		}
	}

	closeFn := func() error { return nil }
	w := console
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("open log file: %w", err)
		}
		closeFn = file.Close
		// the file always gets JSON lines
		w = zerolog.MultiLevelWriter(console, file)
	}

	logger := zerolog.New(w).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()
	return logger, closeFn, nil
}

// WithSession tags every entry with a fresh session id
func WithSession(logger zerolog.Logger) (zerolog.Logger, string) {
	id := uuid.NewString()
	return logger.With().Str("session", id).Logger(), id
}
