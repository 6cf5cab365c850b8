package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteLines creates dir/name holding n newline-terminated lines and returns
// its path
func WriteLines(t testing.TB, dir, name string, n int) string {
	t.Helper()
	return WriteFile(t, dir, name, strings.Repeat("line\n", n))
}

// WriteFile creates dir/name with the given content and returns its path.
// The content is renamed into place so a concurrent scan never observes a
// partially written file.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename %s: %v", path, err)
	}
	return path
}

// SetModTime sets both access and modification time of path
func SetModTime(t testing.TB, path string, mtime time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// Bump rewrites path with n lines and moves its mtime forward so a scan
// sees it as modified even on filesystems with coarse timestamps
func Bump(t testing.TB, path string, n int) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	WriteLines(t, filepath.Dir(path), filepath.Base(path), n)
	SetModTime(t, path, info.ModTime().Add(2*time.Second))
}
