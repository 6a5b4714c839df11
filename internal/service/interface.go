package service

import (
	"context"

	"github.com/RickEth137/ClawStream/internal/domain"
	"github.com/RickEth137/ClawStream/internal/hub"
)

// StreamService drives all producer and viewer operations arriving
// over WebSocket, plus the read side used by the HTTP API.
type StreamService interface {
	// Producer operations.
	HandleAuth(ctx context.Context, c *hub.Client, token string) error
	HandleStart(ctx context.Context, c *hub.Client, displayName string, tags []string) error
	HandleUtter(ctx context.Context, c *hub.Client, text string, estimatedDurationMs int64) error
	HandleSetPose(ctx context.Context, c *hub.Client, msg *domain.SetPoseMessage) error
	HandleEnd(ctx context.Context, c *hub.Client) error

	// Viewer operations.
	HandleJoin(ctx context.Context, c *hub.Client, streamID, token, name string) error
	HandleLeave(ctx context.Context, c *hub.Client) error
	HandleChat(ctx context.Context, c *hub.Client, content string) error

	// Shared.
	HandleDisconnect(ctx context.Context, c *hub.Client) error

	// Read side for the HTTP API.
	ListStreams(ctx context.Context) []domain.StreamInfo
	GetStream(ctx context.Context, id string) (*domain.StreamInfo, error)

	Stop() error
}
