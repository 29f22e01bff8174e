package engine

import "time"

// Timer is a cancellable pending fire.
//
// Stop reports whether the timer was still pending; false means the callback
// already fired or was already stopped. The engine never relies on Stop's
// return value for correctness: a fire that loses the race is invalidated
// inside the lock against the session id it was armed for.
type Timer interface {
	Stop() bool
}

// TimerFactory creates timers. The production implementation wraps
// time.AfterFunc; tests substitute manually fired timers so finalization is
// deterministic.
type TimerFactory interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// WallTimers is the production TimerFactory backed by the runtime timer heap.
type WallTimers struct{}

// AfterFunc schedules fn on its own goroutine after d.
func (WallTimers) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
