package engine

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusOffline Status = "offline"
	StatusLive    Status = "live"
)

// Viewer is one subscribed connection. Send must not block; slow
// consumers are the transport layer's problem.
type Viewer interface {
	ID() string
	Send(v interface{}) error
}

// Config holds engine tuning resolved once at startup.
type Config struct {
	TickInterval     time.Duration
	ChatHistoryLimit int
	Chunker          Chunker
}

// DefaultConfig returns the reference tuning: 20Hz ticks, last 100
// chat messages.
func DefaultConfig() Config {
	return Config{
		TickInterval:     50 * time.Millisecond,
		ChatHistoryLimit: 100,
		Chunker:          DefaultChunker(),
	}
}

// Stats are monotonic per-stream counters.
type Stats struct {
	TotalViewers int `json:"total_viewers"`
	PeakViewers  int `json:"peak_viewers"`
	MessageCount int `json:"message_count"`
}

// SessionInfo is a read-only view of a session for discovery.
type SessionInfo struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	OwnerID     string    `json:"owner_id"`
	Tags        []string  `json:"tags,omitempty"`
	Status      Status    `json:"status"`
	ViewerCount int       `json:"viewer_count"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	Stats       Stats     `json:"stats"`
}

// Session owns one stream: its broadcast state, the fixed-rate tick
// loop, the viewer set and the chat history. All mutation goes
// through session methods under one mutex, preserving the
// single-writer invariant.
type Session struct {
	ID      string
	OwnerID string

	mu          sync.Mutex
	displayName string
	tags        []string
	status      Status
	startedAt   time.Time
	viewers     map[string]Viewer
	chat        []Message
	stats       Stats
	state       *BroadcastState

	// utterSeq is the sequence of the most recently applied
	// utterance; results from superseded synthesis calls carry a
	// lower sequence and are discarded.
	utterSeq uint64
	nextSeq  uint64

	producerConn string

	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	tickStop chan struct{}
}

// NewSession creates an offline session. clock is the time source;
// pass nil for time.Now.
func NewSession(id, ownerID string, cfg Config, clock func() time.Time, logger zerolog.Logger) *Session {
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		ID:      id,
		OwnerID: ownerID,
		status:  StatusOffline,
		viewers: make(map[string]Viewer),
		state:   NewBroadcastState(),
		cfg:     cfg,
		now:     clock,
		logger:  logger.With().Str("stream_id", id).Logger(),
	}
}

// Start flips the session live and starts the tick loop. Starting an
// already-live session is idempotent: it reuses the session and
// updates the producer connection (last successful start wins the
// producer slot). tags are free-form discovery labels.
func (s *Session) Start(displayName, producerConn string, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.displayName = displayName
	s.producerConn = producerConn
	if len(tags) > 0 {
		s.tags = append([]string(nil), tags...)
	}

	if s.status == StatusLive {
		return
	}

	s.status = StatusLive
	s.startedAt = s.now()
	s.state = NewBroadcastState()

	s.tickStop = make(chan struct{})
	go s.run(s.tickStop)

	s.logger.Info().Str("producer_conn", producerConn).Msg("stream live")
}

// End stops the tick loop and marks the session offline, notifying
// viewers. Safe to call multiple times.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusLive {
		return
	}

	s.status = StatusOffline
	close(s.tickStop)
	s.tickStop = nil
	s.producerConn = ""
	s.state = NewBroadcastState()

	ev := StreamEndedEvent{Type: EventTypeStreamEnded}
	for _, v := range s.viewers {
		v.Send(ev)
	}

	s.logger.Info().Msg("stream ended")
}

// run is the fixed-rate tick loop. It owns no state directly; every
// tick re-enters the session mutex.
func (s *Session) run(stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick advances derived state and broadcasts one snapshot to every
// subscriber. A panic while deriving one stream's state must not take
// down the process or other streams.
func (s *Session) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("tick panicked")
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusLive {
		return
	}
	// No subscribers: skip. Safe because state is recomputed from
	// elapsed time, never accumulated across ticks.
	if len(s.viewers) == 0 {
		return
	}

	now := s.now()
	s.state.Advance(now)

	ev := StateEvent{Type: EventTypeState, State: s.state.Snapshot(now)}
	for _, v := range s.viewers {
		v.Send(ev)
	}
}

// NextUtteranceSeq allocates a sequence number for an utterance about
// to be resolved (synthesis, media lookup). The caller passes it back
// to BeginUtterance; by then a newer utterance may have superseded it.
func (s *Session) NextUtteranceSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	return s.nextSeq
}

// BeginUtterance starts a new utterance, overwriting any in-flight
// one (last caller wins, no queueing). It returns false without side
// effects when seq belongs to an utterance that has already been
// superseded — a stale synthesis result must never clobber a newer
// utterance.
//
// Viewers subscribed at this moment get one distinguished audio_start
// event; viewers who join later get the same information inside their
// join snapshot instead.
func (s *Session) BeginUtterance(seq uint64, audioURL string, duration time.Duration, parsed ParsedUtterance, msg *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusLive {
		return false
	}
	if seq < s.utterSeq {
		s.logger.Debug().Uint64("seq", seq).Uint64("current", s.utterSeq).Msg("stale utterance discarded")
		return false
	}
	s.utterSeq = seq

	now := s.now()
	chunks := s.cfg.Chunker.Chunk(parsed.DisplayText)
	s.state.BeginUtterance(audioURL, duration, parsed, chunks, msg, now)

	ev := AudioStartEvent{
		Type:       EventTypeAudioStart,
		URL:        audioURL,
		StartedAt:  now,
		DurationMs: duration.Milliseconds(),
		Message:    msg,
	}
	for _, v := range s.viewers {
		v.Send(ev)
	}

	return true
}

// CurrentSeq reports whether seq still identifies the current
// utterance, for gating side effects resolved after the fact (media
// lookups).
func (s *Session) CurrentSeq(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.utterSeq
}

// SetPose applies a direct pose mutation outside an utterance and
// broadcasts the result immediately.
func (s *Session) SetPose(p Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Expire a finished utterance before snapshotting, so a pose
	// change between ticks can never leak a playing-but-expired
	// state onto the wire.
	now := s.now()
	s.state.Advance(now)
	s.state.SetPose(p)

	ev := StateEvent{Type: EventTypeState, State: s.state.Snapshot(now)}
	for _, v := range s.viewers {
		v.Send(ev)
	}
}

// BroadcastMedia fans a resolved media request out to viewers,
// provided the utterance it belongs to is still current.
func (s *Session) BroadcastMedia(seq uint64, kind, query, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.utterSeq {
		return
	}
	ev := MediaEvent{Type: EventTypeMedia, Kind: kind, Query: query, URL: url}
	for _, v := range s.viewers {
		v.Send(ev)
	}
}

// AddViewer subscribes a viewer. The viewer synchronously receives
// one snapshot reconstructed from current elapsed time, then the chat
// tail, strictly before its first periodic tick: the snapshot send
// and the map insert happen under the same mutex the tick loop
// acquires, so no tick can interleave.
func (s *Session) AddViewer(v Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.state.Advance(now)
	v.Send(StateEvent{Type: EventTypeState, State: s.state.Snapshot(now)})

	for i := range s.chat {
		v.Send(ChatEvent{Type: EventTypeChat, Message: s.chat[i]})
	}

	s.viewers[v.ID()] = v

	s.stats.TotalViewers++
	if n := len(s.viewers); n > s.stats.PeakViewers {
		s.stats.PeakViewers = n
	}
}

// RemoveViewer unsubscribes a viewer. Unknown IDs are ignored.
func (s *Session) RemoveViewer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.viewers, id)
}

// Chat appends a message to the bounded history and fans it out.
func (s *Session) Chat(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chat = append(s.chat, msg)
	if limit := s.cfg.ChatHistoryLimit; limit > 0 && len(s.chat) > limit {
		s.chat = s.chat[len(s.chat)-limit:]
	}
	s.stats.MessageCount++

	ev := ChatEvent{Type: EventTypeChat, Message: msg}
	for _, v := range s.viewers {
		v.Send(ev)
	}
}

// ViewerCount returns the current subscriber count.
func (s *Session) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.viewers)
}

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ProducerConn returns the connection ID currently holding the
// producer slot.
func (s *Session) ProducerConn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.producerConn
}

// Info returns a discovery view of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:          s.ID,
		DisplayName: s.displayName,
		OwnerID:     s.OwnerID,
		Tags:        append([]string(nil), s.tags...),
		Status:      s.status,
		ViewerCount: len(s.viewers),
		StartedAt:   s.startedAt,
		Stats:       s.stats,
	}
}

// Snapshot exposes the current state snapshot, advancing derived
// fields first. Used by tests and the HTTP layer; viewers get
// snapshots through ticks and joins.
func (s *Session) Snapshot() StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.state.Advance(now)
	return s.state.Snapshot(now)
}
