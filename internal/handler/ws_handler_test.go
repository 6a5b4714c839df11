package handler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RickEth137/ClawStream/internal/archive"
	"github.com/RickEth137/ClawStream/internal/chatlog"
	"github.com/RickEth137/ClawStream/internal/config"
	"github.com/RickEth137/ClawStream/internal/directory"
	"github.com/RickEth137/ClawStream/internal/engine"
	"github.com/RickEth137/ClawStream/internal/hub"
	"github.com/RickEth137/ClawStream/internal/media"
	"github.com/RickEth137/ClawStream/internal/service"
	"github.com/RickEth137/ClawStream/internal/tts"
	"github.com/RickEth137/ClawStream/pkg/jwt"
	"github.com/RickEth137/ClawStream/pkg/storage"
)

func newTestWSHandler(t *testing.T) (*WSHandler, *engine.Registry, *jwt.Manager) {
	t.Helper()

	cfg := engine.DefaultConfig()
	cfg.TickInterval = time.Hour
	reg := engine.NewRegistry(cfg, nil, zerolog.Nop())
	jwtMgr := jwt.NewManager("test-secret", "clawstream", time.Hour)

	store, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	svc := service.NewStreamService(
		reg, jwtMgr, tts.Noop{}, media.Noop{}, store,
		archive.Noop{}, directory.Noop{}, chatlog.Noop{},
	)
	return NewWSHandler(hub.NewHub(), svc, config.WebSocketConfig{}), reg, jwtMgr
}

func newProducerClient(t *testing.T, h *WSHandler, jwtMgr *jwt.Manager, agentID string) *hub.Client {
	t.Helper()

	token, err := jwtMgr.Generate(agentID, "Claw", jwt.RoleAgent)
	require.NoError(t, err)

	c := hub.NewClient(uuid.New().String(), nil, nil, config.WebSocketConfig{})
	require.NoError(t, h.service.HandleAuth(context.Background(), c, token))
	require.NoError(t, h.service.HandleStart(context.Background(), c, "Claw Live", nil))
	return c
}

func TestStudioDispatchChatMessage(t *testing.T) {
	h, reg, jwtMgr := newTestWSHandler(t)
	c := newProducerClient(t, h, jwtMgr, "agent-1")

	h.handleStudioMessage(c, []byte(`{"type":"chat_message","content":"welcome in, chat"}`))

	session, ok := reg.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, 1, session.Info().Stats.MessageCount, "producer chat on the studio socket must reach the session")
}

func TestStudioDispatchUnknownType(t *testing.T) {
	h, reg, jwtMgr := newTestWSHandler(t)
	c := newProducerClient(t, h, jwtMgr, "agent-1")

	h.handleStudioMessage(c, []byte(`{"type":"frobnicate"}`))

	session, _ := reg.Get("agent-1")
	assert.Equal(t, 0, session.Info().Stats.MessageCount)
}

func TestStudioDispatchStartWithTags(t *testing.T) {
	h, reg, jwtMgr := newTestWSHandler(t)

	token, err := jwtMgr.Generate("agent-1", "Claw", jwt.RoleAgent)
	require.NoError(t, err)

	c := hub.NewClient(uuid.New().String(), nil, nil, config.WebSocketConfig{})
	require.NoError(t, h.service.HandleAuth(context.Background(), c, token))

	h.handleStudioMessage(c, []byte(`{"type":"start","display_name":"Claw Live","tags":["coding","crabs"]}`))

	session, ok := reg.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, []string{"coding", "crabs"}, session.Info().Tags)
}

func TestWatchDispatchJoinAndChat(t *testing.T) {
	h, reg, jwtMgr := newTestWSHandler(t)
	newProducerClient(t, h, jwtMgr, "agent-1")

	viewer := hub.NewClient(uuid.New().String(), nil, nil, config.WebSocketConfig{})
	h.handleWatchMessage(viewer, []byte(`{"type":"join","stream_id":"agent-1","name":"alice"}`))

	session, _ := reg.Get("agent-1")
	require.Equal(t, 1, session.ViewerCount())

	h.handleWatchMessage(viewer, []byte(`{"type":"chat_message","content":"hi claw"}`))
	assert.Equal(t, 1, session.Info().Stats.MessageCount)
}
