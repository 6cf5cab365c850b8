//go:build integration

package cli

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/schaermu/linewatch/internal/testutil"
)

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	h := NewHarness(t)
	if err := h.BuildBinary(ctx); err != nil {
		t.Fatalf("build binary: %v", err)
	}

	dir := t.TempDir()
	a := testutil.WriteLines(t, dir, "a.txt", 3)
	c := testutil.WriteLines(t, dir, "c.txt", 10)
	testutil.WriteLines(t, dir, "ignored.log", 7)

	// Isolate from any user configuration
	t.Setenv("HOME", t.TempDir())

	if err := h.Start(ctx, "watch", dir, "*.txt", "--interval", "1s", "--log-level", "debug"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The first heartbeat proves the baseline is recorded; nothing is
	// reported for files that already existed.
	h.WaitHeartbeat()

	t.Run("A_ReportsNewChangedDeleted", func(t *testing.T) {
		testutil.WriteLines(t, dir, "b.txt", 2)
		testutil.Bump(t, a, 5)
		if err := os.Remove(c); err != nil {
			t.Fatal(err)
		}

		got := []string{h.NextLine(), h.NextLine(), h.NextLine()}
		sort.Strings(got)
		want := []string{"a.txt +2", "b.txt 2", "c.txt"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("B_ReportsShrink", func(t *testing.T) {
		testutil.Bump(t, filepath.Join(dir, "b.txt"), 0)

		if got := h.NextLine(); got != "b.txt -2" {
			t.Errorf("got %q, want %q", got, "b.txt -2")
		}
	})

	if err := h.Stop(); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
}
