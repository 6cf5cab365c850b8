//go:build integration

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/schaermu/linewatch/internal/testutil"
)

const (
	defaultTimeout = 2 * time.Minute
	lineTimeout    = 15 * time.Second
)

// Harness builds the linewatch binary and drives one running process
type Harness struct {
	t      *testing.T
	binary string
	cmd    *exec.Cmd
	lines  chan string
	done   chan error
}

// NewHarness creates a new test harness
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	return &Harness{t: t}
}

// BuildBinary compiles cmd/linewatch into a temporary directory
func (h *Harness) BuildBinary(ctx context.Context) error {
	h.t.Helper()

	projectRoot, err := testutil.FindProjectRoot()
	if err != nil {
		return fmt.Errorf("get project root: %w", err)
	}

	h.binary = filepath.Join(h.t.TempDir(), "linewatch")
	h.t.Logf("Building %s", h.binary)

	cmd := exec.CommandContext(ctx, "go", "build", "-o", h.binary, "./cmd/linewatch")
	cmd.Dir = projectRoot
	cmd.Stdout = &testWriter{t: h.t, prefix: "[build] "}
	cmd.Stderr = &testWriter{t: h.t, prefix: "[build] "}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	return nil
}

// Start runs the binary with args. Stdout lines become available through
// NextLine; stderr goes to the test log.
func (h *Harness) Start(ctx context.Context, args ...string) error {
	h.t.Helper()
	if h.binary == "" {
		return fmt.Errorf("binary not built")
	}

	h.cmd = exec.CommandContext(ctx, h.binary, args...)
	h.cmd.Stderr = &testWriter{t: h.t, prefix: "[stderr] "}
	// stdin is left as /dev/null so the key watcher stays idle
	stdout, err := h.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}

	if err := h.cmd.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	h.lines = make(chan string, 64)
	h.done = make(chan error, 1)
	go h.readLines(stdout)

	return nil
}

func (h *Harness) readLines(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		h.lines <- scanner.Text()
	}
	close(h.lines)
	h.done <- h.cmd.Wait()
}

// NextLine returns the next stdout line that is not a heartbeat
func (h *Harness) NextLine() string {
	h.t.Helper()
	timeout := time.After(lineTimeout)
	for {
		select {
		case line, ok := <-h.lines:
			if !ok {
				h.t.Fatal("process exited while waiting for output")
			}
			h.t.Logf("[stdout] %s", line)
			if strings.HasSuffix(line, "check in") {
				continue
			}
			return line
		case <-timeout:
			h.t.Fatal("timed out waiting for output")
		}
	}
}

// WaitHeartbeat blocks until the next heartbeat line is printed
func (h *Harness) WaitHeartbeat() {
	h.t.Helper()
	timeout := time.After(lineTimeout)
	for {
		select {
		case line, ok := <-h.lines:
			if !ok {
				h.t.Fatal("process exited while waiting for heartbeat")
			}
			h.t.Logf("[stdout] %s", line)
			if strings.HasSuffix(line, "check in") {
				return
			}
			h.t.Fatalf("unexpected output before heartbeat: %q", line)
		case <-timeout:
			h.t.Fatal("timed out waiting for heartbeat")
		}
	}
}

// Stop interrupts the process and returns its exit error
func (h *Harness) Stop() error {
	h.t.Helper()
	if err := h.cmd.Process.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("signal: %w", err)
	}

	// Drain remaining output so readLines can finish
	go func() {
		for range h.lines {
		}
	}()

	select {
	case err := <-h.done:
		return err
	case <-time.After(lineTimeout):
		_ = h.cmd.Process.Kill()
		return fmt.Errorf("process did not exit after interrupt")
	}
}

// testWriter wraps test logging for command output
type testWriter struct {
	t      *testing.T
	prefix string
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	lines := strings.Split(string(p), "\n")
	for _, line := range lines {
		if line != "" {
			w.t.Log(w.prefix + line)
		}
	}
	return len(p), nil
}

var _ io.Writer = (*testWriter)(nil)
