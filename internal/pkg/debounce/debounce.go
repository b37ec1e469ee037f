// Package debounce coalesces bursts of events into a single action that runs
// once a quiet interval has elapsed since the last event.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn after interval has passed without a new Trigger.
// Each Trigger cancels the pending deadline and starts a new one.
type Debouncer struct {
	interval time.Duration
	fn       func()

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// New creates a Debouncer. fn runs on its own goroutine.
func New(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Trigger records an event and (re)starts the quiet interval.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		// A Trigger or Cancel that raced with this timer firing wins.
		if seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fn()
	})
}

// Cancel drops any pending action.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

// Pending reports whether an action is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}
