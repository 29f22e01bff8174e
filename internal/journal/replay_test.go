package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/devicelink/internal/device"
	"github.com/clinicdesk/devicelink/internal/engine"
	"github.com/clinicdesk/devicelink/internal/testutil"
)

func TestReplay_RebuildsEngineState(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.RecordIngest(chemMsg("GLU", "95"), engine.OutcomeAccepted))
	require.NoError(t, j.RecordIngest(chemMsg("BUN", "14"), engine.OutcomeAccepted))
	require.NoError(t, j.RecordIngest(device.InboundMessage{ConnectionMethod: "serial"}, engine.OutcomeSkipped)) // no device type

	timers := testutil.NewManualTimers()
	eng := engine.New(nil, engine.WithTimerFactory(timers))

	stats, err := Replay(context.Background(), j, eng)
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{Messages: 3, Accepted: 2, Malformed: 1}, stats)

	results := eng.Project()
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].ParameterCount)
	assert.Equal(t, "95", results[0].Results["GLU"])
	assert.Equal(t, "14", results[0].Results["BUN"])
}

func TestReplay_EmptyJournal(t *testing.T) {
	j := openTestJournal(t)

	eng := engine.New(nil, engine.WithTimerFactory(testutil.NewManualTimers()))
	stats, err := Replay(context.Background(), j, eng)
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{}, stats)
}

func TestReplay_CancelledContext(t *testing.T) {
	j := openTestJournal(t)
	require.NoError(t, j.RecordIngest(chemMsg("GLU", "95"), engine.OutcomeAccepted))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := engine.New(nil, engine.WithTimerFactory(testutil.NewManualTimers()))
	_, err := Replay(ctx, j, eng)
	assert.ErrorIs(t, err, context.Canceled)
}
