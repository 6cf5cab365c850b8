// Package notify turns file system events in the watched directory into
// debounced requests for an early rescan.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schaermu/linewatch/internal/scan"
)

// DefaultDebounce is the quiet period used when none is configured
const DefaultDebounce = 250 * time.Millisecond

// Notifier watches one directory for events on files matching a pattern
type Notifier struct {
	dir     string
	pattern string
	delay   time.Duration
	logger  *slog.Logger
}

// New creates a notifier. A non-positive delay selects DefaultDebounce.
func New(dir, pattern string, delay time.Duration, logger *slog.Logger) *Notifier {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Notifier{
		dir:     dir,
		pattern: pattern,
		delay:   delay,
		logger:  logger,
	}
}

// Run watches the directory until ctx ends. After a burst of relevant
// events settles, nudge is called once. Run returns nil when ctx ends.
func (n *Notifier) Run(ctx context.Context, nudge func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(n.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", n.dir, err)
	}

	n.logger.Debug("watching for file events", "dir", n.dir, "pattern", n.pattern)

	d := newDebouncer(n.delay)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !n.relevant(event) {
				continue
			}
			n.logger.Debug("file event", "path", event.Name, "op", event.Op.String())
			d.trigger(nudge)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			n.logger.Warn("file watcher error", "error", err)
		}
	}
}

// relevant drops chmod-only events and files outside the pattern
func (n *Notifier) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	return scan.Matches(n.pattern, event.Name)
}

// debouncer runs the most recent callback once events stop arriving for delay
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	delay    time.Duration
	callback func()
	stopped  bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

// trigger schedules the callback to run after the debounce delay
func (d *debouncer) trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// stop cancels any scheduled callback and ignores later triggers
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
