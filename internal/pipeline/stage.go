// Package pipeline holds the simulated audio pipeline stages driven by the
// scheduler: each stage is a periodic copy task that completes itself and
// re-admits one period after its previous start.
package pipeline

import (
	"sync/atomic"
	"time"

	"edfsched/internal/sched"
)

// Stage is one periodic processing step. Its Run body stands in for the
// upstream-to-downstream buffer copy of a real pipeline: it burns the
// configured busy time, signals completion, and re-admits itself for the
// next period.
type Stage struct {
	name     string
	s        *sched.Scheduler
	task     *sched.Task
	period   time.Duration
	deadline time.Duration
	busy     time.Duration

	stopped atomic.Bool
	copies  atomic.Uint64
	xruns   atomic.Uint64
}

// NewStage builds a stage from its config entry.
func NewStage(s *sched.Scheduler, cfg sched.StageConfig) *Stage {
	st := &Stage{
		name:     cfg.Name,
		s:        s,
		period:   time.Duration(cfg.PeriodUS) * time.Microsecond,
		deadline: time.Duration(cfg.DeadlineUS) * time.Microsecond,
		busy:     time.Duration(cfg.BusyUS) * time.Microsecond,
	}
	st.task = sched.NewTask(cfg.Name,
		time.Duration(cfg.MaxRTimeUS)*time.Microsecond, st)
	return st
}

// Name returns the stage name, which is also its task's name in events.
func (st *Stage) Name() string { return st.name }

// Task exposes the underlying task, mainly so owners can Delete it.
func (st *Stage) Task() *sched.Task { return st.task }

// Start admits the first run, due immediately.
func (st *Stage) Start() {
	st.stopped.Store(false)
	st.s.Admit(st.task, 0, st.deadline)
}

// Cancel withdraws the stage from scheduling. A run already in flight
// finishes first and will not re-admit.
func (st *Stage) Cancel() {
	st.stopped.Store(true)
	st.s.Complete(st.task)
}

// Run copies one period's worth of data, then schedules the next period
// anchored to this run's start so the cadence holds.
func (st *Stage) Run() {
	if st.busy > 0 {
		spin(st.busy)
	}
	st.copies.Add(1)

	st.s.Complete(st.task)
	if !st.stopped.Load() {
		st.s.Admit(st.task, st.period, st.deadline)
	}
}

// NoteXrun records an overrun reported for this stage's task.
func (st *Stage) NoteXrun() {
	st.xruns.Add(1)
}

// Copies reports how many periods have been processed.
func (st *Stage) Copies() uint64 { return st.copies.Load() }

// Xruns reports how many overruns were recorded against this stage.
func (st *Stage) Xruns() uint64 { return st.xruns.Load() }

// spin busy-waits rather than sleeping: a stage occupies the DSP core for
// its whole run time, and the interrupt line's goroutine models that core.
func spin(d time.Duration) {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}
