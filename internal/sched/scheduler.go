// internal/sched/scheduler.go

package sched

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
)

// ErrBusy is returned by Delete when the task is mid-execution. The caller
// must retry once the task has completed.
var ErrBusy = errors.New("sched: task is running, retry later")

// Clock is the monotonic hardware tick source. Implementations must be
// callable from the interrupt line's goroutine and must never block.
type Clock interface {
	// Now returns the current absolute tick.
	Now() Tick
	// TicksIn converts a duration to ticks of this clock.
	TicksIn(d time.Duration) Tick
}

// DeferredWork is the "call me back at tick T" primitive used to wake the
// dispatcher when no task is immediately due. Re-arming replaces any
// previously armed shot.
type DeferredWork interface {
	Init(fn func())
	ArmAt(t Tick)
}

// IRQ is the interrupt line the dispatcher is bound to. Trigger raises the
// line from any context; the registered handler runs on the line's own
// goroutine, which stands in for hardware interrupt context.
type IRQ interface {
	Register(handler func())
	Enable()
	Trigger()
	Clear()
}

// Scheduler is the EDF task scheduler at the heart of the pipeline: it
// decides at interrupt time which unit of work runs next, enforces per-task
// windows, repairs missed deadlines and arms a deferred wake-up when
// nothing is immediately runnable.
//
// One Scheduler per system: construct it exactly once at startup and pass
// it to every pipeline component. Unit tests may build as many as they
// like, each with its own fake platform.
type Scheduler struct {
	mu      sync.Mutex             // protects the registry and task state
	list    *doublylinkedlist.List // tasks currently Queued or Running
	pending []Event                // events parked under mu, emitted after unlock

	clock Clock
	work  DeferredWork
	irq   IRQ

	costTicks  Tick // scheduling overhead credited back on periodic admission
	alignTries int

	logger  *slog.Logger
	events  chan Event
	dropped atomic.Uint64
}

// New wires a scheduler to its platform: the deferred-work shot re-raises
// the interrupt line, and the dispatcher is registered and enabled as the
// line's handler before New returns.
func New(cfg Config, clock Clock, work DeferredWork, irq IRQ, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		list:       doublylinkedlist.New(),
		clock:      clock,
		work:       work,
		irq:        irq,
		costTicks:  clock.TicksIn(time.Duration(cfg.ScheduleCostUS) * time.Microsecond),
		alignTries: cfg.SlotAlignTries,
		logger:     logger,
		events:     make(chan Event, cfg.EventBuffer),
	}

	work.Init(s.Trigger)
	irq.Register(s.dispatch)
	irq.Enable()
	return s
}

// Events exposes the diagnostic event stream. Emission never blocks the
// scheduler: when the buffer is full events are dropped and counted.
func (s *Scheduler) Events() <-chan Event { return s.events }

// Dropped reports how many events were lost to a full buffer.
func (s *Scheduler) Dropped() uint64 { return s.dropped.Load() }

// State reads a task's lifecycle state under the scheduler lock.
func (s *Scheduler) State(t *Task) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.state
}

// Depth returns the number of tasks currently on the registry.
func (s *Scheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Size()
}

// Admit inserts a task with a scheduling window relative to now (start==0)
// or to the task's previous start. The previous-start anchoring, minus the
// configured scheduling cost, keeps back-to-back periodic tasks from
// drifting late purely from scheduler overhead. Admitting a task that is
// mid-execution is a caller error and is dropped with a trace.
func (s *Scheduler) Admit(t *Task, start, deadline time.Duration) {
	s.mu.Lock()

	current := s.clock.Now()

	// not enough MIPS to complete the previous run?
	if t.state == StateRunning {
		depth := s.list.Size()
		s.mu.Unlock()
		s.logger.Warn("admit rejected: task is running", "task", t.Name)
		s.emit(Event{Time: time.Now(), Kind: EventReject, Task: t.Name,
			Tick: current, Queued: depth})
		return
	}

	if start == 0 {
		t.start = current
	} else {
		next := t.start + s.clock.TicksIn(start)
		if next > s.costTicks {
			next -= s.costTicks
		}
		t.start = next
	}
	t.deadline = t.start + s.clock.TicksIn(deadline)
	t.maxRTime = s.clock.TicksIn(t.MaxRuntime)

	// the registry never holds the same task twice
	if s.list.IndexOf(t) < 0 {
		s.list.Append(t)
	}
	t.state = StateQueued

	ev := Event{Time: time.Now(), Kind: EventAdmit, Task: t.Name,
		Tick: current, Start: t.start, Deadline: t.deadline, Queued: s.list.Size()}
	s.mu.Unlock() // NOTE: unlock before emitting, matching lock discipline

	s.emit(ev)
	s.irq.Trigger()
}

// Delete removes a task that is not running. A Running task cannot be
// cancelled mid-flight; ErrBusy tells the caller to retry after completion.
func (s *Scheduler) Delete(t *Task) error {
	s.mu.Lock()

	if t.state == StateRunning {
		s.mu.Unlock()
		return ErrBusy
	}

	current := s.clock.Now()
	s.removeLocked(t)
	t.state = StateCompleted
	ev := Event{Time: time.Now(), Kind: EventDelete, Task: t.Name,
		Tick: current, Queued: s.list.Size()}
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Complete removes a task from the registry and marks it Completed. It is
// called by the task's own body at the end of its work, or by the owner
// after an asynchronous completion signal, and is idempotent.
func (s *Scheduler) Complete(t *Task) {
	s.mu.Lock()

	current := s.clock.Now()
	s.removeLocked(t)
	t.state = StateCompleted
	ev := Event{Time: time.Now(), Kind: EventComplete, Task: t.Name,
		Tick: current, Queued: s.list.Size()}
	s.mu.Unlock()

	s.emit(ev)
}

// Trigger asks the dispatcher to run at the next opportunity. It may be
// called from any context, including from a task body; raising an already
// raised line coalesces.
func (s *Scheduler) Trigger() {
	s.irq.Trigger()
}

// dispatch is the interrupt handler: select under lock, run outside it.
// The lock is never held across the task body because the body may call
// back into Admit/Complete/Trigger.
func (s *Scheduler) dispatch() {
	s.mu.Lock()
	current := s.clock.Now()

	task := s.edfNext(current, nil)
	if task == nil {
		evs := s.takeLocked()
		s.mu.Unlock()
		s.irq.Clear()
		s.drain(evs)
		return
	}

	if task.start > current {
		// not due yet, wake up again at its start tick
		wake := task.start
		evs := append(s.takeLocked(), Event{Time: time.Now(), Kind: EventDefer,
			Task: task.Name, Tick: current, Start: task.start,
			Deadline: task.deadline, Queued: s.list.Size()})
		s.mu.Unlock()
		s.irq.Clear()
		s.drain(evs)
		s.work.ArmAt(wake)
		return
	}

	// due now: pick the follow-up candidate before running, so the wake
	// for it can be armed without a second full dispatch round-trip
	next := s.edfNext(current, task)
	task.state = StateRunning
	admittedStart := task.start
	// reset start to now so scheduling error is not inherited into the
	// next cycle's relative-admission math
	task.start = current
	var wake Tick
	hasWake := next != nil
	if hasWake {
		wake = next.start
	}
	evs := append(s.takeLocked(), Event{Time: time.Now(), Kind: EventDispatch,
		Task: task.Name, Tick: current, Start: admittedStart,
		Deadline: task.deadline, Queued: s.list.Size()})
	s.mu.Unlock()
	s.irq.Clear()
	s.drain(evs)

	task.Runnable.Run()

	if hasWake {
		s.work.ArmAt(wake)
	}
}

// removeLocked unlinks the task if present. Callers hold s.mu.
func (s *Scheduler) removeLocked(t *Task) {
	if i := s.list.IndexOf(t); i >= 0 {
		s.list.Remove(i)
	}
}

// takeLocked steals the parked events. Callers hold s.mu.
func (s *Scheduler) takeLocked() []Event {
	evs := s.pending
	s.pending = nil
	return evs
}

func (s *Scheduler) drain(evs []Event) {
	for _, ev := range evs {
		s.emit(ev)
	}
}

// emit never blocks: the scheduler runs in interrupt context and a slow
// consumer must not stall it.
func (s *Scheduler) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.dropped.Add(1)
	}
}
