package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/schaermu/linewatch/internal/diff"
	"github.com/schaermu/linewatch/internal/metrics"
	"github.com/schaermu/linewatch/internal/state"
)

// DefaultInterval is the heartbeat period used when none is configured
const DefaultInterval = 10 * time.Second

// Scanner lists the files currently in the watched directory
type Scanner interface {
	Scan(ctx context.Context) (map[string]state.Identifier, error)
}

// Counter computes the line count of one file
type Counter interface {
	CountFile(ctx context.Context, id state.Identifier) (state.FileState, error)
}

// Reporter prints heartbeat messages and changes
type Reporter interface {
	Message(msg string) error
	Change(c state.Change) error
}

// Terminator blocks until the user asks to stop. It returns nil on a stop
// request and ctx.Err() when the context ends first.
type Terminator interface {
	Wait(ctx context.Context) error
}

// Nudger calls nudge whenever an early rescan is worthwhile
type Nudger interface {
	Run(ctx context.Context, nudge func()) error
}

// Options configures a Loop
type Options struct {
	// Interval between heartbeats; each heartbeat triggers a rescan
	Interval time.Duration
	// MaxConcurrent bounds running line counts; 0 means unbounded
	MaxConcurrent int
	// Terminator ends the loop on user request (optional)
	Terminator Terminator
	// Nudger requests rescans between heartbeats (optional)
	Nudger Nudger
	// Metrics records loop activity (optional)
	Metrics *metrics.Metrics
}

// Loop owns the snapshot and multiplexes heartbeats, per-file computations
// and termination onto a single control goroutine.
type Loop struct {
	opts     Options
	scanner  Scanner
	counter  Counter
	reporter Reporter
	logger   *slog.Logger
	sem      *semaphore.Weighted

	// Owned by the control goroutine inside Run
	snapshot state.Snapshot
	inflight map[string]struct{}

	events chan Event
	wg     sync.WaitGroup
}

// NewLoop creates a loop over the given collaborators
func NewLoop(opts Options, scanner Scanner, counter Counter, reporter Reporter, logger *slog.Logger) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	l := &Loop{
		opts:     opts,
		scanner:  scanner,
		counter:  counter,
		reporter: reporter,
		logger:   logger,
		snapshot: state.Snapshot{},
		inflight: make(map[string]struct{}),
		events:   make(chan Event),
	}
	if opts.MaxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return l
}

// Snapshot returns the current snapshot. It must not be called while Run
// is executing.
func (l *Loop) Snapshot() state.Snapshot {
	return l.snapshot
}

// Run records the baseline state of the directory and then services events
// until the terminator fires or ctx ends. Both are a clean stop and return
// nil. Every task started by Run has exited by the time it returns.
func (l *Loop) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		l.wg.Wait()
	}()

	if err := l.baseline(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	l.logger.Info("watching",
		"files", len(l.snapshot),
		"interval", l.opts.Interval.String(),
		"max_concurrent", l.opts.MaxConcurrent)

	l.armHeartbeat(ctx)
	l.startTerminator(ctx)
	l.startNudger(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("stopping", "reason", ctx.Err())
			return nil

		case ev := <-l.events:
			stop, err := l.handle(ctx, ev)
			if err != nil {
				return err
			}
			if stop {
				l.logger.Info("stopping", "reason", "termination requested")
				return nil
			}
		}
	}
}

// handle services one completed task
func (l *Loop) handle(ctx context.Context, ev Event) (bool, error) {
	switch ev.Kind {
	case EventHeartbeat:
		if err := l.reporter.Message(ev.Message); err != nil {
			return false, fmt.Errorf("failed to write heartbeat: %w", err)
		}
		l.armHeartbeat(ctx)
		l.rescan(ctx)

	case EventNudge:
		l.logger.Debug("rescan requested by file event")
		l.rescan(ctx)

	case EventChange:
		l.finish(ev.Path)
		l.snapshot = l.snapshot.Apply(ev.Change)
		l.opts.Metrics.RecordChange(ev.Change.Action().String())
		l.opts.Metrics.SetSnapshotFiles(len(l.snapshot))
		l.logger.Debug("change applied",
			"path", ev.Path,
			"action", ev.Change.Action().String(),
			"delta", ev.Change.Delta())
		if err := l.reporter.Change(ev.Change); err != nil {
			return false, fmt.Errorf("failed to write change: %w", err)
		}

	case EventFailure:
		l.finish(ev.Path)
		l.opts.Metrics.RecordCountFailure()
		l.logger.Warn("line count failed, will retry on next scan", "path", ev.Path, "error", ev.Err)

	case EventTerminate:
		return true, nil

	default:
		l.logger.Warn("ignoring unknown event", "kind", ev.Kind.String())
	}

	return false, nil
}

// baseline scans the directory and counts every file without reporting
func (l *Loop) baseline(ctx context.Context) error {
	ids, err := l.scanner.Scan(ctx)
	l.opts.Metrics.RecordScan(err)
	if err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}

	var (
		mu     sync.Mutex
		states = make([]state.FileState, 0, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	if l.opts.MaxConcurrent > 0 {
		g.SetLimit(l.opts.MaxConcurrent)
	}

	for _, id := range ids {
		g.Go(func() error {
			fs, err := l.counter.CountFile(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.opts.Metrics.RecordCountFailure()
				l.logger.Warn("line count failed, file will be reported as new once readable",
					"path", id.Path, "error", err)
				return nil
			}
			mu.Lock()
			states = append(states, fs)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	l.snapshot = state.NewSnapshot(states...)
	l.opts.Metrics.SetSnapshotFiles(len(l.snapshot))
	l.logger.Debug("baseline recorded", "files", len(l.snapshot))
	return nil
}

// rescan diffs a fresh listing against the snapshot and dispatches one task
// per pending change. Paths still being computed are left to a later scan.
func (l *Loop) rescan(ctx context.Context) {
	ids, err := l.scanner.Scan(ctx)
	l.opts.Metrics.RecordScan(err)
	if err != nil {
		if ctx.Err() == nil {
			l.logger.Error("scan failed, skipping this cycle", "error", err)
		}
		return
	}

	var (
		summary diff.Summary
		skipped int
	)
	for p := range diff.Changes(l.snapshot, ids, l.counter.CountFile) {
		if _, busy := l.inflight[p.Path]; busy {
			skipped++
			continue
		}
		summary.Add(p)
		l.dispatch(ctx, p)
	}

	l.opts.Metrics.SetInflight(len(l.inflight))
	if summary.Total() > 0 || skipped > 0 {
		l.logger.Debug("rescan dispatched",
			"modified", summary.Modified,
			"deleted", summary.Deleted,
			"added", summary.Added,
			"still_running", skipped)
	}
}

// dispatch starts the task resolving p
func (l *Loop) dispatch(ctx context.Context, p diff.Pending) {
	l.inflight[p.Path] = struct{}{}

	l.spawn(func() {
		if p.NeedsIO() && l.sem != nil {
			if err := l.sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer l.sem.Release(1)
		}

		c, err := p.Resolve(ctx)
		if err != nil {
			// Cancellation is the shutdown path, not a per-file failure
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			l.send(ctx, Event{Kind: EventFailure, Path: p.Path, Err: err})
			return
		}
		l.send(ctx, Event{Kind: EventChange, Path: p.Path, Change: c})
	})
}

// finish marks a path's computation as done
func (l *Loop) finish(path string) {
	delete(l.inflight, path)
	l.opts.Metrics.SetInflight(len(l.inflight))
}

// armHeartbeat starts the next heartbeat timer
func (l *Loop) armHeartbeat(ctx context.Context) {
	msg := HeartbeatMessage(l.opts.Interval)

	l.spawn(func() {
		t := time.NewTimer(l.opts.Interval)
		defer t.Stop()

		select {
		case <-t.C:
			l.send(ctx, Event{Kind: EventHeartbeat, Message: msg})
		case <-ctx.Done():
		}
	})
}

func (l *Loop) startTerminator(ctx context.Context) {
	if l.opts.Terminator == nil {
		return
	}
	l.spawn(func() {
		if err := l.opts.Terminator.Wait(ctx); err != nil {
			return
		}
		l.send(ctx, Event{Kind: EventTerminate})
	})
}

func (l *Loop) startNudger(ctx context.Context) {
	if l.opts.Nudger == nil {
		return
	}
	// Nudges arrive on callers' goroutines and coalesce while one is pending
	nudges := make(chan struct{}, 1)

	l.spawn(func() {
		err := l.opts.Nudger.Run(ctx, func() {
			select {
			case nudges <- struct{}{}:
			default:
			}
		})
		if err != nil && ctx.Err() == nil {
			l.logger.Warn("file notifications unavailable, relying on heartbeat", "error", err)
		}
	})

	l.spawn(func() {
		for {
			select {
			case <-nudges:
				l.send(ctx, Event{Kind: EventNudge})
			case <-ctx.Done():
				return
			}
		}
	})
}

// send delivers ev to the control goroutine unless the loop is stopping
func (l *Loop) send(ctx context.Context, ev Event) {
	select {
	case l.events <- ev:
	case <-ctx.Done():
	}
}

func (l *Loop) spawn(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}
