package testutil

import (
	"sync"
	"time"

	"github.com/clinicdesk/devicelink/internal/engine"
)

// ManualTimers is a TimerFactory whose timers never fire on their own.
// Tests call Fire on individual timers (or the factory's FireLatest helper)
// to simulate the inactivity window elapsing, making timeout finalization
// deterministic.
type ManualTimers struct {
	mu     sync.Mutex
	timers []*ManualTimer
}

// NewManualTimers creates an empty factory.
func NewManualTimers() *ManualTimers {
	return &ManualTimers{}
}

// AfterFunc registers a timer that fires only when told to.
func (f *ManualTimers) AfterFunc(d time.Duration, fn func()) engine.Timer {
	t := &ManualTimer{d: d, fn: fn, pending: true}
	f.mu.Lock()
	f.timers = append(f.timers, t)
	f.mu.Unlock()
	return t
}

// Created returns how many timers have been armed in total, including
// stopped and fired ones. Lets tests assert re-arm behavior.
func (f *ManualTimers) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// Pending returns how many timers are still armed.
func (f *ManualTimers) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.timers {
		if t.isPending() {
			n++
		}
	}
	return n
}

// Latest returns the most recently armed timer, pending or not.
// Returns nil if nothing was ever armed.
func (f *ManualTimers) Latest() *ManualTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return nil
	}
	return f.timers[len(f.timers)-1]
}

// FireLatest fires the most recently armed still-pending timer.
// Returns false if nothing is pending.
func (f *ManualTimers) FireLatest() bool {
	f.mu.Lock()
	var target *ManualTimer
	for i := len(f.timers) - 1; i >= 0; i-- {
		if f.timers[i].isPending() {
			target = f.timers[i]
			break
		}
	}
	f.mu.Unlock()

	if target == nil {
		return false
	}
	return target.Fire()
}

// ManualTimer is a timer under test control.
type ManualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	fn      func()
	pending bool
}

// Stop cancels the timer. Reports whether it was still pending.
func (t *ManualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.pending
	t.pending = false
	return was
}

// Fire runs the callback if the timer is still pending. The callback runs
// outside the timer's own lock, exactly like a runtime timer goroutine would.
func (t *ManualTimer) Fire() bool {
	t.mu.Lock()
	if !t.pending {
		t.mu.Unlock()
		return false
	}
	t.pending = false
	fn := t.fn
	t.mu.Unlock()

	fn()
	return true
}

// Duration returns the window the timer was armed with.
func (t *ManualTimer) Duration() time.Duration {
	return t.d
}

func (t *ManualTimer) isPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Interface check.
var _ engine.TimerFactory = (*ManualTimers)(nil)
