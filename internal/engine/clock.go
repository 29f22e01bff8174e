package engine

import "sync/atomic"

// Clock is a monotonic logical clock for arrival ordering.
//
// Every accepted parameter and pending file is stamped with a strictly
// increasing seq number from this clock, so "ordered by arrival" never
// depends on wall-clock resolution or equal timestamps from a burst of
// messages.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the engine's mutex means only one ingest stamps at a time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
