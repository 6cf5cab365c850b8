package state

import (
	"errors"
	"fmt"
)

// ErrEmptyChange is returned when a change has neither an old nor a new state
var ErrEmptyChange = errors.New("state change needs an old or a new state")

// Action classifies a change between two states of the same path
type Action int

const (
	// New means the path was not in the previous snapshot
	New Action = iota
	// Deleted means the path is gone from the directory
	Deleted
	// Changed means the line count differs
	Changed
	// None means the file was rewritten but its line count did not move
	None
)

// String returns a human-readable representation of the action
func (a Action) String() string {
	switch a {
	case New:
		return "new"
	case Deleted:
		return "deleted"
	case Changed:
		return "changed"
	case None:
		return "none"
	default:
		return "unknown"
	}
}

// Change is the classified difference between an old and a new state of one path
type Change struct {
	Old *FileState
	New *FileState
}

// NewChange pairs an optional old state with an optional new state
func NewChange(prev, next *FileState) (Change, error) {
	if prev == nil && next == nil {
		return Change{}, ErrEmptyChange
	}
	return Change{Old: prev, New: next}, nil
}

// Action derives the action from which states are present
func (c Change) Action() Action {
	switch {
	case c.Old == nil:
		return New
	case c.New == nil:
		return Deleted
	case c.Old.Lines != c.New.Lines:
		return Changed
	default:
		return None
	}
}

func (c Change) id() Identifier {
	if c.New != nil {
		return c.New.ID
	}
	if c.Old != nil {
		return c.Old.ID
	}
	return Identifier{}
}

// Path returns the path of the new state, or of the old one when deleted
func (c Change) Path() string {
	return c.id().Path
}

// Name returns the file name shown in report lines
func (c Change) Name() string {
	return c.id().Name()
}

// Delta returns new minus old line count. New files count from zero and
// deleted files drop to zero.
func (c Change) Delta() int {
	var before, after int
	if c.Old != nil {
		before = c.Old.Lines
	}
	if c.New != nil {
		after = c.New.Lines
	}
	return after - before
}

// String renders the report line for the change. None renders empty.
func (c Change) String() string {
	switch c.Action() {
	case New:
		return fmt.Sprintf("%s %d", c.Name(), c.New.Lines)
	case Deleted:
		return c.Name()
	case Changed:
		d := c.Delta()
		if d < 0 {
			return fmt.Sprintf("%s -%d", c.Name(), -d)
		}
		return fmt.Sprintf("%s +%d", c.Name(), d)
	default:
		return ""
	}
}
