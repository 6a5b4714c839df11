package engine

import "time"

// Event type tags on the viewer wire.
const (
	EventTypeState       = "state"
	EventTypeAudioStart  = "audio_start"
	EventTypeChat        = "chat"
	EventTypeMedia       = "media"
	EventTypeStreamEnded = "stream_ended"
)

// StateEvent carries one tick's snapshot.
type StateEvent struct {
	Type  string        `json:"type"`
	State StateSnapshot `json:"state"`
}

// AudioStartEvent is pushed once the moment an utterance begins, so
// connected viewers start fetching audio without waiting for the next
// tick. Late joiners get the same information folded into their join
// snapshot instead, never both.
type AudioStartEvent struct {
	Type       string    `json:"type"`
	URL        string    `json:"url,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	Message    *Message  `json:"message,omitempty"`
}

// ChatEvent fans a chat message out to viewers.
type ChatEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// MediaEvent carries a resolved media request (GIF, video) for the
// current utterance.
type MediaEvent struct {
	Type  string `json:"type"`
	Kind  string `json:"kind"`
	Query string `json:"query"`
	URL   string `json:"url"`
}

// StreamEndedEvent tells viewers the stream went offline.
type StreamEndedEvent struct {
	Type string `json:"type"`
}
