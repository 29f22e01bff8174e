package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualTimers_FireRunsCallbackOnce(t *testing.T) {
	f := NewManualTimers()

	fired := 0
	f.AfterFunc(time.Second, func() { fired++ })

	require.Equal(t, 1, f.Pending())
	assert.True(t, f.FireLatest())
	assert.Equal(t, 1, fired)
	assert.Zero(t, f.Pending())

	// Fired timers stay fired.
	assert.False(t, f.FireLatest())
	assert.Equal(t, 1, fired)
}

func TestManualTimers_StopPreventsFire(t *testing.T) {
	f := NewManualTimers()

	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports not pending")
	assert.False(t, f.FireLatest())
	assert.False(t, fired)
}

func TestManualTimers_FireLatestSkipsStopped(t *testing.T) {
	f := NewManualTimers()

	var order []string
	f.AfterFunc(time.Second, func() { order = append(order, "first") })
	second := f.AfterFunc(time.Second, func() { order = append(order, "second") })
	second.Stop()

	assert.True(t, f.FireLatest())
	assert.Equal(t, []string{"first"}, order)
}

func TestManualTimers_Counters(t *testing.T) {
	f := NewManualTimers()
	assert.Nil(t, f.Latest())

	f.AfterFunc(time.Second, func() {})
	f.AfterFunc(2*time.Second, func() {})

	assert.Equal(t, 2, f.Created())
	assert.Equal(t, 2, f.Pending())
	assert.Equal(t, 2*time.Second, f.Latest().Duration())
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := NewFakeClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now(), "clock only moves on Advance")

	clock.Advance(42 * time.Second)
	assert.Equal(t, start.Add(42*time.Second), clock.Now())
}
