// Package directory mirrors the live-stream list into redis so other
// processes can discover active broadcasts. The in-memory registry
// stays authoritative; every call here is best effort.
package directory

import "context"

// Directory advertises live streams to an external index.
type Directory interface {
	SetLive(ctx context.Context, streamID, ownerID, title string) error
	UpdateViewerCount(ctx context.Context, streamID string, count int) error
	SetOffline(ctx context.Context, streamID string) error
	Close() error
}

// Noop is used when redis is not configured.
type Noop struct{}

func (Noop) SetLive(ctx context.Context, streamID, ownerID, title string) error { return nil }

func (Noop) UpdateViewerCount(ctx context.Context, streamID string, count int) error { return nil }

func (Noop) SetOffline(ctx context.Context, streamID string) error { return nil }

func (Noop) Close() error { return nil }
