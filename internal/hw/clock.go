// internal/hw/clock.go

package hw

import (
	"sync/atomic"
	"time"

	"edfsched/internal/sched"
)

// TickClock is the simulated monotonic hardware clock: a free-running
// counter advanced by a ticker goroutine. Now and TicksIn are lock-free so
// they are safe from the interrupt line's goroutine.
type TickClock struct {
	hz       int64
	interval time.Duration
	count    atomic.Int64
	stop     chan struct{}
}

// NewTickClock creates a clock ticking at the given rate but does not
// start it.
func NewTickClock(hz int) *TickClock {
	if hz <= 0 {
		hz = 1_000_000
	}
	return &TickClock{
		hz:       int64(hz),
		interval: time.Second / time.Duration(hz),
		stop:     make(chan struct{}),
	}
}

// Start begins advancing the counter.
func (c *TickClock) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.count.Add(1)
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts the counter. The clock cannot be restarted.
func (c *TickClock) Stop() {
	close(c.stop)
}

// Now returns the current tick atomically.
func (c *TickClock) Now() sched.Tick {
	return sched.Tick(c.count.Load())
}

// TicksIn converts a duration to ticks of this clock.
func (c *TickClock) TicksIn(d time.Duration) sched.Tick {
	if d <= 0 {
		return 0
	}
	return sched.Tick(d.Nanoseconds() * c.hz / int64(time.Second))
}

// Interval is the wall-clock length of one tick.
func (c *TickClock) Interval() time.Duration {
	return c.interval
}
