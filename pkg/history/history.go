// Package history keeps the undo stack of sort operations for one review session.
package history

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/menta2k/annotation-triage/internal/fsx"
	"github.com/menta2k/annotation-triage/pkg/types"
)

// ErrNothingToUndo is returned by Undo on an empty stack
var ErrNothingToUndo = errors.New("nothing to undo")

// errOccupied means the restore target already exists
var errOccupied = errors.New("restore target already exists")

// UndoFailedError reports an operation that could not be reversed.
// The operation has been dropped from the stack.
type UndoFailedError struct {
	Op  types.Operation
	Err error
}

func (e *UndoFailedError) Error() string {
	return fmt.Sprintf("undo %s of %s failed: %v", e.Op.Kind, e.Op.DestImage, e.Err)
}

func (e *UndoFailedError) Unwrap() error { return e.Err }

// IsUndoFailed reports whether err is an UndoFailedError
func IsUndoFailed(err error) bool {
	var e *UndoFailedError
	return errors.As(err, &e)
}

// Log is a LIFO of sort operations
type Log struct {
	entries []types.Operation
	limit   int
	logger  zerolog.Logger

	move   func(src, dst string) error
	copy   func(src, dst string) error
	remove func(path string) error
}

// Option customizes a Log
type Option func(*Log)

// WithLimit caps the stack depth; the oldest entry is dropped when exceeded. 0 means unbounded.
func WithLimit(n int) Option {
	return func(l *Log) { l.limit = n }
}

// WithLogger sets the logger used for undo events
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates an empty Log
func New(opts ...Option) *Log {
	l := &Log{
		logger: zerolog.Nop(),
		move:   fsx.Move,
		copy:   fsx.CopyFile,
		remove: os.Remove,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Push records an operation
func (l *Log) Push(op types.Operation) {
	l.entries = append(l.entries, op)
	if l.limit > 0 && len(l.entries) > l.limit {
		dropped := len(l.entries) - l.limit
		l.entries = append(l.entries[:0:0], l.entries[dropped:]...)
	}
}

// Len returns the number of undoable operations
func (l *Log) Len() int {
	return len(l.entries)
}

// Peek returns the most recent operation without removing it
func (l *Log) Peek() (types.Operation, bool) {
	if len(l.entries) == 0 {
		return types.Operation{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Entries returns a copy of the stack, oldest first
func (l *Log) Entries() []types.Operation {
	return append([]types.Operation(nil), l.entries...)
}

// Undo pops the most recent operation and reverses it.
// On failure the operation stays dropped and older entries are left alone.
func (l *Log) Undo() (types.Operation, error) {
	op, ok := l.Peek()
	if !ok {
		return types.Operation{}, ErrNothingToUndo
	}
	l.entries = l.entries[:len(l.entries)-1]

	var err error
	switch op.Kind {
	case types.OpMove:
		err = l.undoMove(op)
	case types.OpSave:
		err = l.undoSave(op)
	default:
		err = fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	if err != nil {
		l.logger.Warn().Err(err).Str("kind", string(op.Kind)).Str("image", op.DestImage).Msg("undo failed, entry dropped")
		return op, &UndoFailedError{Op: op, Err: err}
	}

	l.logger.Info().Str("kind", string(op.Kind)).Str("restored", op.SourceImage).Msg("undone")
	return op, nil
}

// undoMove moves the files straight back
func (l *Log) undoMove(op types.Operation) error {
	label, err := l.checkRestore(op)
	if err != nil {
		return err
	}

	if err := l.move(op.DestImage, op.SourceImage); err != nil {
		return fmt.Errorf("restore image: %w", err)
	}
	if label {
		if err := l.move(op.DestLabel, op.SourceLabel); err != nil {
			if rbErr := l.move(op.SourceImage, op.DestImage); rbErr != nil {
				return fmt.Errorf("restore label: %w (image left at %s: %v)", err, op.SourceImage, rbErr)
			}
			return fmt.Errorf("restore label: %w", err)
		}
	}
	return nil
}

// undoSave copies the files back and only then deletes the saved copies
func (l *Log) undoSave(op types.Operation) error {
	label, err := l.checkRestore(op)
	if err != nil {
		return err
	}

	if err := l.copy(op.DestImage, op.SourceImage); err != nil {
		_ = l.remove(op.SourceImage)
		return fmt.Errorf("copy image back: %w", err)
	}
	if label {
		if err := l.copy(op.DestLabel, op.SourceLabel); err != nil {
			_ = l.remove(op.SourceLabel)
			_ = l.remove(op.SourceImage)
			return fmt.Errorf("copy label back: %w", err)
		}
	}

	if err := l.remove(op.DestImage); err != nil {
		return fmt.Errorf("remove saved image: %w", err)
	}
	if label {
		if err := l.remove(op.DestLabel); err != nil {
			return fmt.Errorf("remove saved label: %w", err)
		}
	}
	return nil
}

// checkRestore verifies the saved image is still there and nothing occupies the
// original paths. It reports whether the label should be restored too; a label
// that vanished from the destination is skipped.
func (l *Log) checkRestore(op types.Operation) (bool, error) {
	if !fsx.Exists(op.DestImage) {
		return false, fmt.Errorf("%s: %w", op.DestImage, os.ErrNotExist)
	}
	if _, err := os.Lstat(op.SourceImage); err == nil {
		return false, fmt.Errorf("%s: %w", op.SourceImage, errOccupied)
	}

	if !op.HasLabel() {
		return false, nil
	}
	if !fsx.Exists(op.DestLabel) {
		l.logger.Warn().Str("label", op.DestLabel).Msg("saved label is gone, restoring image only")
		return false, nil
	}
	if _, err := os.Lstat(op.SourceLabel); err == nil {
		return false, fmt.Errorf("%s: %w", op.SourceLabel, errOccupied)
	}
	return true, nil
}
