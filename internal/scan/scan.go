package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schaermu/linewatch/internal/state"
)

// ErrBadPattern is returned for patterns filepath.Match cannot parse
var ErrBadPattern = filepath.ErrBadPattern

// ValidatePattern checks that pattern is a well-formed glob
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty pattern: %w", ErrBadPattern)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return nil
}

// Matches returns true if the base name of path matches pattern
func Matches(pattern, path string) bool {
	ok, err := filepath.Match(pattern, filepath.Base(path))
	return err == nil && ok
}

// Scan lists the regular files directly inside dir whose names match
// pattern, keyed by full path. Subdirectories are not descended into.
func Scan(dir, pattern string) (map[string]state.Identifier, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	ids := make(map[string]state.Identifier, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !Matches(pattern, entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		// Stat follows symlinks so linked files are watched like regular ones
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Removed between listing and stat
				continue
			}
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		ids[path] = state.Identifier{
			Path:    path,
			ModTime: info.ModTime().UTC(),
		}
	}

	return ids, nil
}

// Scanner scans a fixed directory and pattern
type Scanner struct {
	Dir     string
	Pattern string
}

// Scan lists the current identifiers. The context is only checked up front;
// a single directory listing is not interruptible.
func (s Scanner) Scan(ctx context.Context) (map[string]state.Identifier, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Scan(s.Dir, s.Pattern)
}
