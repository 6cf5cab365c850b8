package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/schaermu/linewatch/internal/state"
)

// Reporter prints heartbeat messages and change lines
type Reporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewReporter creates a reporter writing to w
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{w: w}
}

// Message prints a heartbeat message
func (r *Reporter) Message(msg string) error {
	return r.println(msg)
}

// Change prints the report line for c. Changes with no observable effect
// print nothing.
func (r *Reporter) Change(c state.Change) error {
	if c.Action() == state.None {
		return nil
	}
	return r.println(c.String())
}

func (r *Reporter) println(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := fmt.Fprintln(r.w, line)
	return err
}

// KeyWatcher ends the watch when the user presses Enter
type KeyWatcher struct {
	in          io.Reader
	interactive bool
}

// NewKeyWatcher watches f for input. Input is only watched when f is a
// terminal; otherwise Wait blocks until the context ends.
func NewKeyWatcher(f *os.File) *KeyWatcher {
	return &KeyWatcher{
		in:          f,
		interactive: term.IsTerminal(int(f.Fd())),
	}
}

// NewReaderWatcher watches an arbitrary reader, as if it were a terminal
func NewReaderWatcher(r io.Reader) *KeyWatcher {
	return &KeyWatcher{in: r, interactive: true}
}

// Interactive reports whether key presses are watched
func (k *KeyWatcher) Interactive() bool {
	return k.interactive
}

// Wait blocks until a line of input arrives (or the input ends) and then
// returns nil. It returns ctx.Err() if the context ends first.
//
// A pending read cannot be interrupted; its goroutine lives until the
// input yields or the process exits.
func (k *KeyWatcher) Wait(ctx context.Context) error {
	if !k.interactive {
		<-ctx.Done()
		return ctx.Err()
	}

	pressed := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(k.in).ReadString('\n')
		close(pressed)
	}()

	select {
	case <-pressed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
