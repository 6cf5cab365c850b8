package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFindProjectRoot(t *testing.T) {
	root, err := FindProjectRoot()
	if err != nil {
		t.Fatalf("FindProjectRoot returned error: %v", err)
	}
	if root == "" {
		t.Fatal("FindProjectRoot returned empty string")
	}

	goMod := filepath.Join(root, "go.mod")
	if _, err := os.Stat(goMod); err != nil {
		t.Fatalf("go.mod not found at %s: %v", goMod, err)
	}
}

func TestWriteLines(t *testing.T) {
	path := WriteLines(t, t.TempDir(), "a.txt", 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "line\nline\nline\n" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestBump(t *testing.T) {
	path := WriteLines(t, t.TempDir(), "a.txt", 1)
	before := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	SetModTime(t, path, before)

	Bump(t, path, 4)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().After(before) {
		t.Errorf("mtime %v not after %v", info.ModTime(), before)
	}
	if info.Size() != int64(len("line\n")*4) {
		t.Errorf("unexpected size %d", info.Size())
	}
}
