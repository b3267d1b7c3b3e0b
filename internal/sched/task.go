package sched

import "time"

// Tick is one unit of the monotonic scheduling clock. Conversions to and
// from wall-clock durations are clock-specific (see Clock).
type Tick uint64

// State is a task's position in its lifecycle.
type State int

const (
	StateIdle      State = iota // created, never admitted (or relinquished)
	StateQueued                 // admitted, waiting for start time or selection
	StateRunning                // executing, exclusive
	StateCompleted              // finished normally, off the registry
	StateCancelled              // shed after an unrecoverable deadline miss
)

func (st State) String() string {
	switch st {
	case StateIdle:
		return "Idle"
	case StateQueued:
		return "Queued"
	case StateRunning:
		return "Running"
	case StateCompleted:
		return "Completed"
	case StateCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Runnable is the opaque body of a task. The scheduler calls Run exactly
// once per dispatch, synchronously, on the interrupt line's goroutine, and
// never inspects what it does.
type Runnable interface {
	Run()
}

// RunFunc adapts a plain function to Runnable.
type RunFunc func()

func (f RunFunc) Run() { f() }

// Task is one schedulable unit of pipeline work. The pipeline component
// owns the Task; the scheduler only holds a registry link while the task is
// Queued or Running and relinquishes all interest once it is Completed or
// Cancelled.
//
// start, deadline and maxRTime are absolute ticks maintained by the
// scheduler under its lock. MaxRuntime is the caller-declared worst-case
// run time; the effective deadline used for selection is
// deadline - maxRTime, the latest start tick that still allows on-time
// completion. Callers must keep MaxRuntime <= deadline - start for that
// arithmetic to stay meaningful.
type Task struct {
	Name       string
	Runnable   Runnable
	MaxRuntime time.Duration

	start    Tick
	deadline Tick
	maxRTime Tick
	state    State
}

// NewTask creates a task around the given body. Timing is assigned at
// admission, not here.
func NewTask(name string, maxRuntime time.Duration, body Runnable) *Task {
	return &Task{
		Name:       name,
		Runnable:   body,
		MaxRuntime: maxRuntime,
	}
}

// Window returns the task's current absolute scheduling window.
func (t *Task) Window() (start, deadline Tick) {
	return t.start, t.deadline
}

// effDeadline is the latest tick the task could still start and finish on
// time.
func (t *Task) effDeadline() Tick {
	return t.deadline - t.maxRTime
}
