// internal/hw/work.go

package hw

import (
	"sync"
	"time"

	"edfsched/internal/sched"
)

// DelayedWork is the deferred-work primitive: a one-shot callback fired no
// earlier than a given absolute tick. Arming replaces any shot still
// pending, which is exactly what the dispatcher wants when a newly admitted
// task moves the next wake-up earlier.
type DelayedWork struct {
	clock *TickClock

	mu    sync.Mutex
	fn    func()
	timer *time.Timer
}

// NewDelayedWork binds the deferred-work shot to a clock for tick-to-delay
// conversion.
func NewDelayedWork(clock *TickClock) *DelayedWork {
	return &DelayedWork{clock: clock}
}

// Init sets the callback. Must be called before ArmAt.
func (w *DelayedWork) Init(fn func()) {
	w.mu.Lock()
	w.fn = fn
	w.mu.Unlock()
}

// ArmAt schedules the callback for the given absolute tick. A tick already
// in the past fires immediately.
func (w *DelayedWork) ArmAt(t sched.Tick) {
	var delay time.Duration
	if now := w.clock.Now(); t > now {
		delay = time.Duration(t-now) * w.clock.Interval()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(delay, w.fn)
}

// Cancel stops any pending shot.
func (w *DelayedWork) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
