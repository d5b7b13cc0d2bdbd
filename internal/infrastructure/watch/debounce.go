// Package watch follows a store file and reports settled changes.
package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers. After window passes without a
// new trigger, one value is sent on C. C holds at most one pending value.
type Debouncer struct {
	C <-chan struct{}

	window time.Duration
	out    chan struct{}
	mu     sync.Mutex
	timer  *time.Timer
}

func NewDebouncer(window time.Duration) *Debouncer {
	out := make(chan struct{}, 1)
	return &Debouncer{C: out, window: window, out: out}
}

// Trigger restarts the window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	select {
	case d.out <- struct{}{}:
	default:
	}
}

// Stop cancels a pending fire.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
}
