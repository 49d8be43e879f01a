package updater

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterPreservesOrder(t *testing.T) {
	b := NewBroadcaster()
	done := collectEvents(b)

	b.Publish(EventInit, InitPayload{LogID: 1})
	b.Publish(EventStep, StepPayload{Index: 0})
	b.Publish(EventStep, StepPayload{Index: 1})
	b.Publish(EventComplete, CompletePayload{Status: "SUCCESS"})
	b.Close()

	events := <-done
	require.Len(t, events, 4)
	assert.Equal(t, EventInit, events[0].Kind)
	assert.Equal(t, EventStep, events[1].Kind)
	assert.Equal(t, EventStep, events[2].Kind)
	assert.Equal(t, EventComplete, events[3].Kind)

	step, ok := events[1].Payload.(StepPayload)
	require.True(t, ok)
	assert.Equal(t, 0, step.Index)
}

func TestBroadcasterCloseIdempotent(t *testing.T) {
	b := NewBroadcaster()
	b.Close()
	assert.NotPanics(t, func() { b.Close() })

	_, open := <-b.Events()
	assert.False(t, open, "events channel must be closed")
}
