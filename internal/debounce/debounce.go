// Package debounce provides a cancellable trailing-edge debouncer: the
// task runs once, a fixed delay after the most recent trigger. Used to
// coalesce rapid layout-change notifications from interactive dragging
// into a single persisted write.
package debounce

import (
	"sync"
	"time"
)

// Debouncer owns one timer handle. Each Trigger cancels any pending run
// before scheduling its replacement, and Stop cancels permanently on
// teardown so a late write can never fire with a stale layout.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	stopped bool
}

// New creates a debouncer with the given trailing delay.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the delay, cancelling any previously
// scheduled task. fn runs on a timer goroutine.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending task and rejects future triggers.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
