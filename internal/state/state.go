package state

import (
	"path/filepath"
	"sort"
	"time"
)

// Identifier describes a file as seen by a directory scan
type Identifier struct {
	Path    string    // full path, the identity of the file
	ModTime time.Time // last write time, UTC
}

// Name returns the file name used in report lines
func (id Identifier) Name() string {
	return filepath.Base(id.Path)
}

// FileState pairs an identifier with the line count computed for it
type FileState struct {
	ID    Identifier
	Lines int
}

// Snapshot maps a file path to its last known state.
// Every value's ID.Path equals its key.
type Snapshot map[string]FileState

// NewSnapshot builds a snapshot keyed by each state's path
func NewSnapshot(states ...FileState) Snapshot {
	s := make(Snapshot, len(states))
	for _, fs := range states {
		s[fs.ID.Path] = fs
	}
	return s
}

// Clone returns a shallow copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for path, fs := range s {
		out[path] = fs
	}
	return out
}

// Apply returns a new snapshot with the change folded in. The receiver is
// never modified, so readers holding the previous snapshot are unaffected.
func (s Snapshot) Apply(c Change) Snapshot {
	next := s.Clone()

	switch c.Action() {
	case New, Changed:
		next[c.Path()] = *c.New
	case Deleted:
		delete(next, c.Path())
	case None:
		// Nothing observable changed; the stored identifier stays as is.
	}

	return next
}

// Paths returns the snapshot's paths in sorted order
func (s Snapshot) Paths() []string {
	paths := make([]string, 0, len(s))
	for path := range s {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
