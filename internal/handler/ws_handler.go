package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/RickEth137/ClawStream/internal/config"
	"github.com/RickEth137/ClawStream/internal/domain"
	"github.com/RickEth137/ClawStream/internal/hub"
	"github.com/RickEth137/ClawStream/internal/service"
	"github.com/RickEth137/ClawStream/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades connections and dispatches wire messages.
// Studio sockets carry producer traffic, watch sockets carry viewer
// traffic; the two share one dispatcher with disjoint message sets.
type WSHandler struct {
	hub     *hub.Hub
	service service.StreamService
	wsCfg   config.WebSocketConfig
}

func NewWSHandler(h *hub.Hub, svc service.StreamService, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		wsCfg:   wsCfg,
	}
}

func (h *WSHandler) HandleStudio(c *gin.Context) {
	h.upgrade(c, h.handleStudioMessage)
}

func (h *WSHandler) HandleWatch(c *gin.Context) {
	h.upgrade(c, h.handleWatchMessage)
}

func (h *WSHandler) upgrade(c *gin.Context, dispatch func(*hub.Client, []byte)) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), h.hub, conn, h.wsCfg)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(dispatch, h.onClose)
}

func (h *WSHandler) onClose(client *hub.Client) {
	ctx := context.Background()
	if err := h.service.HandleDisconnect(ctx, client); err != nil {
		l := log.L()
		l.Warn().Err(err).Str("client_id", client.ID()).Msg("disconnect handling failed")
	}
	h.hub.Unregister(client)
}

func (h *WSHandler) handleStudioMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	ctx := context.Background()
	l := log.L()

	switch base.Type {
	case domain.MsgTypeAuth:
		var msg domain.AuthMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid auth message"))
			return
		}
		if err := h.service.HandleAuth(ctx, client, msg.Token); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("auth failed")
		}

	case domain.MsgTypeStart:
		var msg domain.StartMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid start message"))
			return
		}
		if err := h.service.HandleStart(ctx, client, msg.DisplayName, msg.Tags); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("start failed")
		}

	case domain.MsgTypeUtter:
		var msg domain.UtterMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid utter message"))
			return
		}
		if msg.Text == "" {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "empty utterance"))
			return
		}
		if err := h.service.HandleUtter(ctx, client, msg.Text, msg.EstimatedDurationMs); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("utter failed")
		}

	case domain.MsgTypeSetPose:
		var msg domain.SetPoseMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid set_pose message"))
			return
		}
		if err := h.service.HandleSetPose(ctx, client, &msg); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("set_pose failed")
		}

	case domain.MsgTypeEnd:
		if err := h.service.HandleEnd(ctx, client); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("end failed")
		}

	case domain.MsgTypeChat:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid chat_message"))
			return
		}
		if err := h.service.HandleChat(ctx, client, msg.Content); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("chat failed")
		}

	case domain.MsgTypePing:
		client.Send(map[string]string{"type": domain.MsgTypePong})

	default:
		client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}

func (h *WSHandler) handleWatchMessage(client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid message format"))
		return
	}

	ctx := context.Background()
	l := log.L()

	switch base.Type {
	case domain.MsgTypeJoin:
		var msg domain.JoinMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid join message"))
			return
		}
		if msg.StreamID == "" {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "stream_id is required"))
			return
		}
		if err := h.service.HandleJoin(ctx, client, msg.StreamID, msg.Token, msg.Name); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("join failed")
		}

	case domain.MsgTypeLeave:
		if err := h.service.HandleLeave(ctx, client); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("leave failed")
		}

	case domain.MsgTypeChat:
		var msg domain.ChatMessageIn
		if err := json.Unmarshal(message, &msg); err != nil {
			client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "invalid chat_message"))
			return
		}
		if err := h.service.HandleChat(ctx, client, msg.Content); err != nil {
			l.Warn().Err(err).Str("client_id", client.ID()).Msg("chat failed")
		}

	case domain.MsgTypePing:
		client.Send(map[string]string{"type": domain.MsgTypePong})

	default:
		client.Send(domain.NewErrorMessage(domain.ErrCodeBadRequest, "unknown message type"))
	}
}
