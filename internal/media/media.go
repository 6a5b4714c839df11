// Package media resolves overlay media requests (gif lookups and the
// like) made from inside utterance text.
package media

import (
	"context"
	"errors"

	"github.com/RickEth137/ClawStream/internal/engine"
)

// ErrNotFound means the lookup ran but nothing matched the query.
var ErrNotFound = errors.New("media: no result")

// Item is a resolved overlay asset ready for broadcast.
type Item struct {
	Kind  engine.MediaKind
	URL   string
	Title string
}

// Finder resolves a media request to a playable URL. Implementations
// must be safe for concurrent use.
type Finder interface {
	Find(ctx context.Context, kind engine.MediaKind, query string) (*Item, error)
}

// Noop is used when no media provider is configured. All lookups
// report ErrNotFound so overlays are silently skipped.
type Noop struct{}

func (Noop) Find(ctx context.Context, kind engine.MediaKind, query string) (*Item, error) {
	return nil, ErrNotFound
}
