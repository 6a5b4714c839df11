package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreateReturnsSameSession(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(testConfig(), clock.Now, zerolog.Nop())

	a := r.GetOrCreate("agent-1", "agent-1")
	b := r.GetOrCreate("agent-1", "other-owner")

	require.Same(t, a, b, "second GetOrCreate must reuse the entry")
	assert.Equal(t, "agent-1", a.OwnerID, "owner is fixed at creation")
}

func TestRegistry_GetMissing(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(testConfig(), clock.Now, zerolog.Nop())

	_, ok := r.Get("nobody")
	assert.False(t, ok)
}

func TestRegistry_ListLiveFiltersOffline(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(testConfig(), clock.Now, zerolog.Nop())

	live := r.GetOrCreate("live-1", "live-1")
	live.Start("Live One", "conn-1")
	defer live.End()

	r.GetOrCreate("idle-1", "idle-1")

	infos := r.ListLive()
	require.Len(t, infos, 1)
	assert.Equal(t, "live-1", infos[0].ID)
	assert.Equal(t, StatusLive, infos[0].Status)
}

func TestRegistry_OfflineEntryRetained(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(testConfig(), clock.Now, zerolog.Nop())

	s := r.GetOrCreate("agent-1", "agent-1")
	s.Start("Agent Stream", "conn-1")
	s.Chat(Message{ID: "m1", Text: "hi", SentAt: clock.Now()})
	s.End()

	again, ok := r.Get("agent-1")
	require.True(t, ok, "entry survives going offline")
	require.Same(t, s, again)

	// Reconnection resumes the same id and history.
	again.Start("Agent Stream", "conn-2")
	defer again.End()
	v := &fakeViewer{id: "viewer-1"}
	again.AddViewer(v)

	history := 0
	for _, e := range v.events() {
		if _, ok := e.(ChatEvent); ok {
			history++
		}
	}
	assert.Equal(t, 1, history, "chat history survives reconnect")
}
