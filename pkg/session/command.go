package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/menta2k/annotation-triage/pkg/history"
	"github.com/menta2k/annotation-triage/pkg/sorter"
)

// CommandKind enumerates the review actions
type CommandKind int

const (
	CmdNext CommandKind = iota
	CmdPrev
	CmdSort
	CmdSave
	CmdUndo
	CmdQuit
)

// Command is a single review action. Destination is used by CmdSort only.
type Command struct {
	Kind        CommandKind
	Destination string
}

// Next moves to the following image, wrapping at the end
func Next() Command { return Command{Kind: CmdNext} }

// Prev moves to the previous image, wrapping at the start
func Prev() Command { return Command{Kind: CmdPrev} }

// SortTo moves the current image into a rejection category
func SortTo(destination string) Command {
	return Command{Kind: CmdSort, Destination: destination}
}

// Save moves the current image into the save folder
func Save() Command { return Command{Kind: CmdSave} }

// Undo reverses the most recent sort
func Undo() Command { return Command{Kind: CmdUndo} }

// Quit ends the session
func Quit() Command { return Command{Kind: CmdQuit} }

func (c Command) String() string {
	switch c.Kind {
	case CmdNext:
		return "next"
	case CmdPrev:
		return "prev"
	case CmdSort:
		return "sort:" + c.Destination
	case CmdSave:
		return "save"
	case CmdUndo:
		return "undo"
	case CmdQuit:
		return "quit"
	default:
		return fmt.Sprintf("command(%d)", int(c.Kind))
	}
}

// Dispatch applies cmd. Returned errors are recoverable and meant to be shown
// to the reviewer: ErrMissingFile, ErrInvalidDestination, ErrNothingToUndo
// or an UndoFailedError. The next Load reflects the new position.
func (s *Session) Dispatch(cmd Command) error {
	switch cmd.Kind {
	case CmdNext:
		s.step(1)
		return nil
	case CmdPrev:
		s.step(-1)
		return nil
	case CmdSort:
		return s.sortTo(cmd.Destination)
	case CmdSave:
		if s.saveDest == "" {
			return fmt.Errorf("%w: no save folder configured", sorter.ErrInvalidDestination)
		}
		return s.sortTo(s.saveDest)
	case CmdUndo:
		return s.undo()
	case CmdQuit:
		s.done = true
		return nil
	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
}

func (s *Session) step(delta int) {
	if len(s.files) == 0 {
		return
	}
	n := len(s.files)
	s.index = ((s.index+delta)%n + n) % n
}

// sortTo moves the current image. The index is kept, so the list refresh
// brings the following image into place.
func (s *Session) sortTo(destination string) error {
	name, ok := s.Current()
	if !ok {
		return ErrNoImages
	}

	op, err := s.sorter.Sort(name, destination)
	if err != nil {
		if errors.Is(err, sorter.ErrMissingFile) {
			if rerr := s.refresh(); rerr != nil {
				return errors.Join(err, rerr)
			}
		}
		return err
	}
	s.history.Push(op)
	s.counts[op.Destination]++
	return s.refresh()
}

// undo reverses the last sort and moves the index to the restored image
func (s *Session) undo() error {
	op, err := s.history.Undo()
	if errors.Is(err, history.ErrNothingToUndo) {
		return err
	}
	if err == nil {
		s.counts[op.Destination]--
	}
	if rerr := s.refresh(); rerr != nil {
		return errors.Join(err, rerr)
	}
	if err != nil {
		return err
	}

	if i := slices.Index(s.files, filepath.Base(op.SourceImage)); i >= 0 {
		s.index = i
	}
	return nil
}
