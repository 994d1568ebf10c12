package watcher

import (
	"sync"
	"time"
)

// Debouncer collapses bursts of triggers into a single call of fn, made once
// delay has passed since the most recent trigger.
//
// A mutex guards the pending deadline. The first trigger of a burst starts a
// task; later triggers only move the deadline. The task sleeps without
// holding the lock, re-checks the deadline on waking, and the wake-up that
// finds the deadline passed clears the pending flag before calling fn. Calls
// of fn never overlap.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu       sync.Mutex
	deadline time.Time
	pending  bool

	callMu sync.Mutex
	done   chan struct{}
	once   sync.Once
}

// NewDebouncer returns a Debouncer that calls fn delay after the last trigger.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		delay: delay,
		fn:    fn,
		done:  make(chan struct{}),
	}
}

// Trigger records an event at the current time.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.deadline = time.Now().Add(d.delay)
	if d.pending {
		return
	}
	d.pending = true
	go d.wait()
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels any scheduled call. A call already running is not interrupted.
func (d *Debouncer) Stop() {
	d.once.Do(func() { close(d.done) })
}

func (d *Debouncer) wait() {
	for {
		d.mu.Lock()
		remaining := time.Until(d.deadline)
		if remaining <= 0 {
			d.pending = false
			d.mu.Unlock()
			break
		}
		d.mu.Unlock()

		timer := time.NewTimer(remaining)
		select {
		case <-d.done:
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	d.callMu.Lock()
	defer d.callMu.Unlock()
	select {
	case <-d.done:
		return
	default:
	}
	d.fn()
}
