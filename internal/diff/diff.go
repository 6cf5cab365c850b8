package diff

import (
	"context"
	"iter"
	"sort"

	"github.com/schaermu/linewatch/internal/state"
)

// CountFunc computes the state of a file from its identifier
type CountFunc func(ctx context.Context, id state.Identifier) (state.FileState, error)

// Kind tells why a pending computation was scheduled
type Kind int

const (
	// KindModified is a known file with a strictly newer mtime
	KindModified Kind = iota
	// KindDeleted is a known file missing from the scan; it resolves without I/O
	KindDeleted
	// KindAdded is a file the snapshot has never seen
	KindAdded
)

// String returns a human-readable representation of the kind
func (k Kind) String() string {
	switch k {
	case KindModified:
		return "modified"
	case KindDeleted:
		return "deleted"
	case KindAdded:
		return "added"
	default:
		return "unknown"
	}
}

// Pending is a change whose final state may still need a line count
type Pending struct {
	Path string
	Kind Kind

	old   *state.FileState
	id    state.Identifier
	count CountFunc
}

// NeedsIO returns false for changes that are already resolved
func (p Pending) NeedsIO() bool {
	return p.Kind != KindDeleted
}

// Resolve runs the line count if needed and returns the resulting change
func (p Pending) Resolve(ctx context.Context) (state.Change, error) {
	if !p.NeedsIO() {
		return state.NewChange(p.old, nil)
	}

	fs, err := p.count(ctx, p.id)
	if err != nil {
		return state.Change{}, err
	}
	return state.NewChange(p.old, &fs)
}

// Changes compares the snapshot with freshly scanned identifiers and yields
// one pending computation per candidate, lazily, in three passes: modified,
// deleted, then added. Paths are visited in sorted order within each pass.
//
// A known file whose mtime is equal or older is treated as unchanged and
// yields nothing.
func Changes(old state.Snapshot, fresh map[string]state.Identifier, count CountFunc) iter.Seq[Pending] {
	return func(yield func(Pending) bool) {
		for _, path := range old.Paths() {
			id, ok := fresh[path]
			if !ok {
				continue
			}
			prev := old[path]
			if !id.ModTime.After(prev.ID.ModTime) {
				continue
			}
			if !yield(Pending{Path: path, Kind: KindModified, old: &prev, id: id, count: count}) {
				return
			}
		}

		for _, path := range old.Paths() {
			if _, ok := fresh[path]; ok {
				continue
			}
			prev := old[path]
			if !yield(Pending{Path: path, Kind: KindDeleted, old: &prev}) {
				return
			}
		}

		for _, path := range sortedKeys(fresh) {
			if _, ok := old[path]; ok {
				continue
			}
			if !yield(Pending{Path: path, Kind: KindAdded, id: fresh[path], count: count}) {
				return
			}
		}
	}
}

// Summary counts pending computations by kind
type Summary struct {
	Modified int
	Deleted  int
	Added    int
}

// Add records p in the summary
func (s *Summary) Add(p Pending) {
	switch p.Kind {
	case KindModified:
		s.Modified++
	case KindDeleted:
		s.Deleted++
	case KindAdded:
		s.Added++
	}
}

// Total returns the number of recorded computations
func (s Summary) Total() int {
	return s.Modified + s.Deleted + s.Added
}

func sortedKeys(m map[string]state.Identifier) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
