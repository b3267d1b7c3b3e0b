// internal/sched/edf.go

package sched

import "time"

// edfNext finds the queued task with the earliest effective deadline still
// ahead of current, ignoring the given task (the one just dispatched).
// Queued tasks whose effective deadline has already passed are repaired on
// the way: the first miss seen in a scan is rescheduled and stays queued,
// every later miss in the same scan is shed as an unrecoverable overrun.
// Bounding repair to one reschedule per pass keeps the worst case small;
// more than one simultaneous miss means the system is overloaded and
// patching every straggler would only dig the hole deeper.
//
// Must be called with s.mu held. Miss/XRUN events are parked on s.pending
// for the caller to emit after unlocking.
func (s *Scheduler) edfNext(current Tick, ignore *Task) *Task {
	var next *Task
	nextDelta := ^Tick(0)
	repaired := false
	var shed []*Task

	if s.list.Empty() {
		return nil
	}

	// check every queued task in the registry
	it := s.list.Iterator()
	for it.Next() {
		t := it.Value().(*Task)

		if t == ignore || t.state != StateQueued {
			continue
		}

		// include the length of the task itself in the deadline calc
		deadline := t.effDeadline()

		if current < deadline {
			// still schedulable, keep the earliest
			delta := deadline - current
			if delta < nextDelta {
				nextDelta = delta
				next = t
			}
			continue
		}

		// missed scheduling window
		s.logger.Warn("deadline missed",
			"task", t.Name, "tick", uint64(current), "deadline", uint64(deadline))

		if !repaired {
			repaired = true
			rescheduleTask(t, current, s.alignTries)
			s.pending = append(s.pending, Event{
				Time: time.Now(), Kind: EventMiss, Task: t.Name,
				Tick: current, Start: t.start, Deadline: t.deadline,
				Queued: s.list.Size(),
			})
		} else {
			t.state = StateCancelled
			shed = append(shed, t)
		}
	}

	for _, t := range shed {
		s.logger.Error("xrun: task shed after repeated deadline miss",
			"task", t.Name, "tick", uint64(current))
		s.removeLocked(t)
		s.pending = append(s.pending, Event{
			Time: time.Now(), Kind: EventXrun, Task: t.Name,
			Tick: current, Start: t.start, Deadline: t.deadline,
			Queued: s.list.Size(),
		})
	}

	return next
}

// rescheduleTask computes a fresh start/deadline for a task whose window
// was missed. The new window keeps twice the task's period as slack and
// first tries to stay aligned with the task's original cadence; after a
// fixed number of tries the task has slipped too far behind real time and
// the window is simply pushed out from current. The bound keeps recovery
// cost constant, which matters because this runs in interrupt context.
func rescheduleTask(t *Task, current Tick, tries int) {
	delta := (t.deadline - t.start) << 1

	// try to align the task with its original scheduling slots
	for i := 0; i < tries; i++ {
		t.start += delta

		if t.start > current+delta {
			t.deadline = t.start + delta
			return
		}
	}

	// task has slipped a lot, so just add the delay onto current
	t.start = current + delta
	t.deadline = t.start + delta
}
