package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransport(t *testing.T) {
	ctx := context.Background()

	t.Run("commands keep their order", func(t *testing.T) {
		tr := NewMemoryTransport(4)
		require.NoError(t, tr.SendCommand(ctx, Command{Type: CmdUpdateMarkers}))
		require.NoError(t, tr.SendCommand(ctx, Command{Type: CmdUpdateRoute}))

		assert.Equal(t, CmdUpdateMarkers, (<-tr.Commands()).Type)
		assert.Equal(t, CmdUpdateRoute, (<-tr.Commands()).Type)
	})

	t.Run("full command buffer respects the context", func(t *testing.T) {
		tr := NewMemoryTransport(1)
		require.NoError(t, tr.SendCommand(ctx, Command{Type: CmdUpdateMarkers}))

		short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, tr.SendCommand(short, Command{Type: CmdUpdateRoute}), context.DeadlineExceeded)
	})

	t.Run("events are dropped instead of blocking", func(t *testing.T) {
		tr := NewMemoryTransport(1)
		require.NoError(t, tr.SendEvent(ctx, logEvent("one")))
		assert.ErrorIs(t, tr.SendEvent(ctx, logEvent("two")), ErrEventDropped)
	})

	t.Run("closed transport refuses sends", func(t *testing.T) {
		tr := NewMemoryTransport(1)
		require.NoError(t, tr.Close())
		require.NoError(t, tr.Close())

		assert.ErrorIs(t, tr.SendCommand(ctx, Command{Type: CmdUpdateMarkers}), ErrTransportClosed)
		assert.ErrorIs(t, tr.SendEvent(ctx, logEvent("late")), ErrTransportClosed)
		_, open := <-tr.Done()
		assert.False(t, open)
	})
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "routemap.abc.commands", CommandSubject("abc"))
	assert.Equal(t, "routemap.abc.events", EventSubject("abc"))
	assert.Equal(t, "routemap.a_b_c.events", EventSubject("a.b*c"))
	assert.Equal(t, "routemap._.commands", CommandSubject("  "))
}

func TestEventWireFormat(t *testing.T) {
	idx := 0
	raw, err := json.Marshal(markerClicked(idx, "서울시청"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "markerClicked", decoded["type"])
	assert.EqualValues(t, 0, decoded["index"])
	assert.Equal(t, "서울시청", decoded["title"])

	assert.True(t, EventMarkerClicked.IsKnown())
	assert.False(t, EventType("zoomChanged").IsKnown())
}
