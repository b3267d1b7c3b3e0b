package sched_test

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edfsched/internal/hw"
	"edfsched/internal/sched"
)

// TestRunningSingletonUnderStress hammers the scheduler from several
// admission goroutines against the real simulated platform and checks that
// task bodies never overlap: only one Running task at any instant.
func TestRunningSingletonUnderStress(t *testing.T) {
	cfg := sched.Config{
		TickHZ:         1000,
		ScheduleCostUS: 0,
		SlotAlignTries: 10,
		EventBuffer:    4096,
	}

	clock := hw.NewTickClock(cfg.TickHZ)
	work := hw.NewDelayedWork(clock)
	line := hw.NewLine()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := sched.New(cfg, clock, work, line, logger)

	clock.Start()
	defer clock.Stop()
	defer line.Disable()
	defer work.Cancel()

	var (
		running    atomic.Int32
		violations atomic.Int32
		runs       atomic.Int32
	)

	const owners = 8
	tasks := make([]*sched.Task, owners)
	for i := range tasks {
		var task *sched.Task
		task = sched.NewTask("stress", time.Millisecond, sched.RunFunc(func() {
			if running.Add(1) != 1 {
				violations.Add(1)
			}
			spinFor(200 * time.Microsecond)
			running.Add(-1)
			runs.Add(1)
			s.Complete(task)
		}))
		tasks[i] = task
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task *sched.Task) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.Admit(task, 0, 100*time.Millisecond)
				time.Sleep(4 * time.Millisecond)
			}
		}(task)
	}
	wg.Wait()

	// let the last dispatches drain
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, violations.Load(), "two task bodies overlapped")
	require.Greater(t, runs.Load(), int32(0), "no task ever ran")
}

// TestDeferredWakeRunsFutureTask admits a task due well in the future and
// checks that the deferred shot, not the admission interrupt, runs it.
func TestDeferredWakeRunsFutureTask(t *testing.T) {
	cfg := sched.Config{
		TickHZ:         1000,
		ScheduleCostUS: 0,
		SlotAlignTries: 10,
		EventBuffer:    64,
	}

	clock := hw.NewTickClock(cfg.TickHZ)
	work := hw.NewDelayedWork(clock)
	line := hw.NewLine()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := sched.New(cfg, clock, work, line, logger)

	clock.Start()
	defer clock.Stop()
	defer line.Disable()
	defer work.Cancel()

	ran := make(chan time.Time, 1)
	var task *sched.Task
	task = sched.NewTask("later", 0, sched.RunFunc(func() {
		ran <- time.Now()
		s.Complete(task)
	}))

	admitted := time.Now()
	s.Admit(task, 50*time.Millisecond, 200*time.Millisecond)

	select {
	case at := <-ran:
		assert.GreaterOrEqual(t, at.Sub(admitted), 20*time.Millisecond,
			"task ran before its start window")
	case <-time.After(2 * time.Second):
		t.Fatal("deferred wake never ran the task")
	}
}

func spinFor(d time.Duration) {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}
