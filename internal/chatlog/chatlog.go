// Package chatlog streams chat traffic to kafka for offline analysis.
// Publishing is fire-and-forget; the broadcast never waits on it.
package chatlog

import (
	"context"

	"github.com/RickEth137/ClawStream/internal/engine"
)

// Producer publishes chat messages to an external log.
type Producer interface {
	Produce(ctx context.Context, streamID string, msg engine.Message) error
	Close() error
}

// Noop is used when kafka is not configured.
type Noop struct{}

func (Noop) Produce(ctx context.Context, streamID string, msg engine.Message) error { return nil }

func (Noop) Close() error { return nil }
