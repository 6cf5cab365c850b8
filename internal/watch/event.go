package watch

import (
	"fmt"
	"time"

	"github.com/schaermu/linewatch/internal/state"
)

// EventKind tags what a completed task produced
type EventKind int

const (
	// EventHeartbeat is the recurring timer firing
	EventHeartbeat EventKind = iota
	// EventChange is a resolved per-file change
	EventChange
	// EventFailure is a per-file computation that failed
	EventFailure
	// EventNudge asks for an early rescan
	EventNudge
	// EventTerminate ends the loop
	EventTerminate
)

// String returns a human-readable representation of the kind
func (k EventKind) String() string {
	switch k {
	case EventHeartbeat:
		return "heartbeat"
	case EventChange:
		return "change"
	case EventFailure:
		return "failure"
	case EventNudge:
		return "nudge"
	case EventTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Event is the result of one finished task. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind    EventKind
	Message string       // EventHeartbeat
	Change  state.Change // EventChange
	Path    string       // EventChange, EventFailure
	Err     error        // EventFailure
}

// HeartbeatMessage returns the check-in line printed every interval
func HeartbeatMessage(interval time.Duration) string {
	if interval > 0 && interval%time.Second == 0 {
		return fmt.Sprintf("%d second check in", int64(interval/time.Second))
	}
	return interval.String() + " check in"
}
