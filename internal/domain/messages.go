// Package domain holds the WebSocket wire messages and stream value
// types shared by the gateway layers.
package domain

import "github.com/RickEth137/ClawStream/internal/engine"

// WebSocket message types from clients.
const (
	MsgTypeAuth    = "auth"
	MsgTypeStart   = "start"
	MsgTypeUtter   = "utter"
	MsgTypeSetPose = "set_pose"
	MsgTypeEnd     = "end"
	MsgTypeJoin    = "join"
	MsgTypeLeave   = "leave"
	MsgTypeChat    = "chat_message"
	MsgTypePing    = "ping"
)

// WebSocket message types to clients. Engine events (state,
// audio_start, chat, media, stream_ended) come straight from the
// engine with their own type tags.
const (
	MsgTypeAuthResult = "auth_result"
	MsgTypeStarted    = "started"
	MsgTypeJoined     = "joined"
	MsgTypeLeft       = "left"
	MsgTypeError      = "error"
	MsgTypePong       = "pong"
)

// Error codes.
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "STREAM_NOT_FOUND"
	ErrCodeNotJoined     = "NOT_JOINED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages.

type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type StartMessage struct {
	Type        string   `json:"type"`
	DisplayName string   `json:"display_name"`
	Tags        []string `json:"tags,omitempty"`
}

type UtterMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
	// EstimatedDurationMs overrides the word-count duration estimate
	// used when synthesis yields no exact length.
	EstimatedDurationMs int64 `json:"estimated_duration_ms,omitempty"`
}

type SetPoseMessage struct {
	Type string      `json:"type"`
	Pose engine.Pose `json:"pose"`
}

type JoinMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
	// Token is optional for viewers; it only affects chat styling.
	Token string `json:"token,omitempty"`
	Name  string `json:"name,omitempty"`
}

type ChatMessageIn struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Server -> Client messages.

type AuthResultMessage struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	AgentID string `json:"agent_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

type StartedMessage struct {
	Type   string     `json:"type"`
	Stream StreamInfo `json:"stream"`
}

type JoinedMessage struct {
	Type   string     `json:"type"`
	Stream StreamInfo `json:"stream"`
}

type LeftMessage struct {
	Type     string `json:"type"`
	StreamID string `json:"stream_id"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
