// Package tts turns utterance text into playable audio clips.
package tts

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnavailable means no synthesis backend is configured.
	ErrUnavailable = errors.New("tts: no synthesizer configured")
	// ErrSynthesis wraps backend failures.
	ErrSynthesis = errors.New("tts: synthesis failed")
)

// Clip is a finished synthesis result.
type Clip struct {
	Audio    []byte
	Format   string
	Duration time.Duration
}

// Synthesizer produces speech audio for display text. Implementations
// must be safe for concurrent use.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Clip, error)
}

// EstimateDuration guesses how long spoken text lasts when the real
// clip duration is unknown. Roughly 150 words per minute, floored so
// even one word holds the avatar for a beat.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	d := time.Duration(words) * 400 * time.Millisecond
	if d < time.Second {
		d = time.Second
	}
	return d
}

// Noop satisfies Synthesizer when TTS is not configured. Every call
// fails with ErrUnavailable so callers take the silent path.
type Noop struct{}

func (Noop) Synthesize(ctx context.Context, text string) (*Clip, error) {
	return nil, ErrUnavailable
}
