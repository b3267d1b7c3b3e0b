// internal/hw/irq.go

package hw

import "sync"

// Line is a software interrupt line. On real hardware the scheduler runs
// in IRQ context; here a dedicated goroutine plays that role, servicing
// the line whenever it is raised. The pending latch has depth one, so
// raising an already raised line coalesces just like a hardware pending
// bit, and Clear drops a raise that arrived while the handler was already
// servicing the line.
type Line struct {
	pending chan struct{}
	done    chan struct{}

	mu      sync.Mutex
	handler func()
	enabled bool
}

// NewLine creates an unregistered, disabled line.
func NewLine() *Line {
	return &Line{
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Register installs the handler. Must precede Enable.
func (l *Line) Register(handler func()) {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
}

// Enable starts servicing the line on its own goroutine.
func (l *Line) Enable() {
	l.mu.Lock()
	if l.enabled || l.handler == nil {
		l.mu.Unlock()
		return
	}
	l.enabled = true
	handler := l.handler
	l.mu.Unlock()

	go func() {
		for {
			select {
			case <-l.done:
				return
			case <-l.pending:
				handler()
			}
		}
	}()
}

// Trigger raises the line. Non-blocking from any context; a raise onto an
// already pending line is absorbed.
func (l *Line) Trigger() {
	select {
	case l.pending <- struct{}{}:
	default:
	}
}

// Clear drops any pending raise.
func (l *Line) Clear() {
	select {
	case <-l.pending:
	default:
	}
}

// Disable stops the service goroutine. The line cannot be re-enabled.
func (l *Line) Disable() {
	close(l.done)
}
