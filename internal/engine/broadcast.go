package engine

import (
	"math"
	"time"
)

// Message is the chat-message snapshot attached to an utterance so
// late joiners can replay the triggering message.
type Message struct {
	ID       string    `json:"id"`
	SenderID string    `json:"sender_id"`
	Sender   string    `json:"sender"`
	Role     string    `json:"role"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// BroadcastState is the mutable per-stream snapshot. It has exactly
// one writer: the owning Session. Methods are not safe for concurrent
// use; the session serializes access.
type BroadcastState struct {
	audioURL      string
	audioStart    time.Time
	audioDuration time.Duration

	// active drives the utterance timeline. The wire-visible playing
	// flag is active && audioURL != "", so a degraded (synthesis
	// failed) utterance still advances subtitles without ever
	// claiming playing audio it does not have.
	active bool

	mouthOpen  float64
	expression Expression
	gesture    Gesture
	lookX      float64
	lookY      float64

	subtitleText    string
	subtitleVisible bool
	subtitleIndex   int
	chunks          []string

	current *Message
}

// NewBroadcastState returns a state at rest.
func NewBroadcastState() *BroadcastState {
	return &BroadcastState{expression: ExpressionNeutral}
}

// BeginUtterance replaces any in-flight utterance unconditionally.
// Expression, gesture, look and the first subtitle chunk become
// visible immediately, not on the next tick.
func (b *BroadcastState) BeginUtterance(audioURL string, duration time.Duration, parsed ParsedUtterance, chunks []string, msg *Message, now time.Time) {
	b.expression = parsed.Expression
	b.gesture = parsed.Gesture
	b.lookX = parsed.LookX
	b.lookY = parsed.LookY

	b.chunks = chunks
	b.subtitleIndex = 0
	if len(chunks) > 0 {
		b.subtitleText = chunks[0]
		b.subtitleVisible = true
	} else {
		b.subtitleText = ""
		b.subtitleVisible = false
	}

	b.audioURL = audioURL
	b.audioStart = now
	b.audioDuration = duration
	b.active = duration > 0

	b.current = msg
}

// Advance recomputes derived fields from elapsed time. Once elapsed
// reaches the audio duration the whole utterance is cleared to the
// rest state within the same call, so no observer ever sees a
// playing-but-expired state.
func (b *BroadcastState) Advance(now time.Time) {
	if !b.active {
		return
	}

	elapsed := now.Sub(b.audioStart)
	if elapsed >= b.audioDuration {
		b.active = false
		b.mouthOpen = 0
		b.subtitleText = ""
		b.subtitleVisible = false
		b.audioURL = ""
		b.gesture = ""
		b.chunks = nil
		b.subtitleIndex = 0
		return
	}

	if b.audioURL != "" {
		b.mouthOpen = mouthAmplitude(elapsed)
	}

	if n := len(b.chunks); n > 0 {
		idx := int(float64(elapsed) / float64(b.audioDuration) * float64(n))
		if idx >= n {
			idx = n - 1
		}
		if idx != b.subtitleIndex {
			b.subtitleIndex = idx
			b.subtitleText = b.chunks[idx]
		}
	}
}

// mouthAmplitude is a bounded pseudo-periodic lip-sync amplitude
// derived purely from elapsed time, so any observer computing it from
// the same broadcast elapsed value agrees. It is presentation only,
// not audio analysis.
func mouthAmplitude(elapsed time.Duration) float64 {
	t := elapsed.Seconds()
	v := 0.45 +
		0.30*math.Sin(2*math.Pi*4.3*t) +
		0.20*math.Sin(2*math.Pi*6.9*t+1.1) +
		0.05*math.Sin(2*math.Pi*11.7*t+2.4)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Pose is a partial pose mutation applied outside an utterance flow,
// e.g. idle animation. Nil fields are left untouched; audio fields
// are never touched.
type Pose struct {
	Expression *Expression `json:"expression,omitempty"`
	Gesture    *Gesture    `json:"gesture,omitempty"`
	LookX      *float64    `json:"look_x,omitempty"`
	LookY      *float64    `json:"look_y,omitempty"`
	MouthOpen  *float64    `json:"mouth_open,omitempty"`
}

// SetPose applies a partial pose mutation.
func (b *BroadcastState) SetPose(p Pose) {
	if p.Expression != nil {
		b.expression = *p.Expression
	}
	if p.Gesture != nil {
		b.gesture = *p.Gesture
	}
	if p.LookX != nil {
		b.lookX = *p.LookX
	}
	if p.LookY != nil {
		b.lookY = *p.LookY
	}
	if p.MouthOpen != nil {
		b.mouthOpen = clamp01(*p.MouthOpen)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// AudioSnapshot describes the audio timeline at one instant. Position
// is what a late joiner seeks to.
type AudioSnapshot struct {
	URL        string    `json:"url,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
	PositionMs int64     `json:"position_ms"`
	Playing    bool      `json:"playing"`
}

// AvatarSnapshot describes the avatar pose at one instant.
type AvatarSnapshot struct {
	MouthOpen  float64    `json:"mouth_open"`
	Expression Expression `json:"expression"`
	Gesture    Gesture    `json:"gesture,omitempty"`
	LookX      float64    `json:"look_x"`
	LookY      float64    `json:"look_y"`
}

// SubtitleSnapshot describes the subtitle line at one instant.
type SubtitleSnapshot struct {
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// StateSnapshot is an immutable, fully self-describing copy of
// BroadcastState, sufficient to reconstruct client presentation with
// no prior history.
type StateSnapshot struct {
	Audio      AudioSnapshot    `json:"audio"`
	Avatar     AvatarSnapshot   `json:"avatar"`
	Subtitle   SubtitleSnapshot `json:"subtitle"`
	Message    *Message         `json:"message,omitempty"`
	ServerTime int64            `json:"server_time"`
}

// Snapshot copies the state at now. Position and ServerTime are
// computed at call time, never cached.
func (b *BroadcastState) Snapshot(now time.Time) StateSnapshot {
	var position time.Duration
	if b.active {
		position = now.Sub(b.audioStart)
		if position > b.audioDuration {
			position = b.audioDuration
		}
	}

	return StateSnapshot{
		Audio: AudioSnapshot{
			URL:        b.audioURL,
			StartedAt:  b.audioStart,
			DurationMs: b.audioDuration.Milliseconds(),
			PositionMs: position.Milliseconds(),
			Playing:    b.active && b.audioURL != "",
		},
		Avatar: AvatarSnapshot{
			MouthOpen:  b.mouthOpen,
			Expression: b.expression,
			Gesture:    b.gesture,
			LookX:      b.lookX,
			LookY:      b.lookY,
		},
		Subtitle: SubtitleSnapshot{
			Text:    b.subtitleText,
			Visible: b.subtitleVisible,
		},
		Message:    b.current,
		ServerTime: now.UnixMilli(),
	}
}
