// internal/sched/event.go

package sched

import (
	"time"
)

// EventKind represents the type of scheduler event.
type EventKind int

const (
	EventAdmit    EventKind = iota // task entered the registry
	EventReject                    // admission refused (task was Running)
	EventDispatch                  // task body about to run
	EventDefer                     // candidate not yet due, wake-up armed
	EventMiss                      // deadline miss repaired by reschedule
	EventXrun                      // unrecoverable miss, task cancelled
	EventComplete                  // task left the registry normally
	EventDelete                    // task removed by explicit deletion
)

// Event is emitted on every scheduling decision so operators and the
// owning pipeline can observe misses and overruns. An unrecoverable miss
// (EventXrun) is the failure signal consumers awaiting completion must
// watch for.
type Event struct {
	Time     time.Time
	Kind     EventKind
	Task     string // task name, empty for task-less events
	Tick     Tick   // scheduler clock when the event was recorded
	Start    Tick   // task window at event time
	Deadline Tick
	Queued   int // registry depth after the event
}

func (k EventKind) String() string {
	switch k {
	case EventAdmit:
		return "Admit"
	case EventReject:
		return "Reject"
	case EventDispatch:
		return "Dispatch"
	case EventDefer:
		return "Defer"
	case EventMiss:
		return "Miss"
	case EventXrun:
		return "XRUN"
	case EventComplete:
		return "Complete"
	case EventDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}
