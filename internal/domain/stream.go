package domain

import (
	"time"

	"github.com/RickEth137/ClawStream/internal/engine"
)

// StreamInfo is the discovery view of a stream.
type StreamInfo struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Tags        []string    `json:"tags,omitempty"`
	IsLive      bool        `json:"is_live"`
	ViewerCount int         `json:"viewer_count"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
	Stats       StreamStats `json:"stats"`
}

// StreamStats mirrors the engine's monotonic counters.
type StreamStats struct {
	TotalViewers int `json:"total_viewers"`
	PeakViewers  int `json:"peak_viewers"`
	MessageCount int `json:"message_count"`
}

// InfoFromSession converts an engine discovery view.
func InfoFromSession(info engine.SessionInfo) StreamInfo {
	return StreamInfo{
		ID:          info.ID,
		DisplayName: info.DisplayName,
		Tags:        info.Tags,
		IsLive:      info.Status == engine.StatusLive,
		ViewerCount: info.ViewerCount,
		StartedAt:   info.StartedAt,
		Stats: StreamStats{
			TotalViewers: info.Stats.TotalViewers,
			PeakViewers:  info.Stats.PeakViewers,
			MessageCount: info.Stats.MessageCount,
		},
	}
}
