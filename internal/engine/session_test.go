package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeViewer records every event it is sent.
type fakeViewer struct {
	id string
	mu sync.Mutex
	ev []interface{}
}

func (v *fakeViewer) ID() string { return v.id }

func (v *fakeViewer) Send(e interface{}) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ev = append(v.ev, e)
	return nil
}

func (v *fakeViewer) events() []interface{} {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]interface{}, len(v.ev))
	copy(out, v.ev)
	return out
}

func (v *fakeViewer) countAudioStarts() int {
	n := 0
	for _, e := range v.events() {
		if _, ok := e.(AudioStartEvent); ok {
			n++
		}
	}
	return n
}

// testConfig uses an hour-long tick interval so tests drive ticks by
// calling tick() directly.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TickInterval = time.Hour
	return cfg
}

func newTestSession(clock *fakeClock) *Session {
	return NewSession("agent-1", "agent-1", testConfig(), clock.Now, zerolog.Nop())
}

func TestSession_StartEndIdempotent(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)

	if s.Status() != StatusOffline {
		t.Fatalf("expected offline, got %q", s.Status())
	}

	s.Start("Agent Stream", "conn-1")
	s.Start("Agent Stream", "conn-2")
	if s.Status() != StatusLive {
		t.Fatalf("expected live, got %q", s.Status())
	}
	if s.ProducerConn() != "conn-2" {
		t.Errorf("last start must win the producer slot, got %q", s.ProducerConn())
	}

	s.End()
	s.End()
	if s.Status() != StatusOffline {
		t.Fatalf("expected offline after end, got %q", s.Status())
	}
}

func TestSession_LateJoinOffset(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	seq := s.NextUtteranceSeq()
	parsed := Parse("[excited] Hello everyone watching!")
	if !s.BeginUtterance(seq, "http://cdn/a.mp3", 3*time.Second, parsed, nil) {
		t.Fatal("utterance rejected")
	}

	clock.Advance(1500 * time.Millisecond)

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)

	events := v.events()
	if len(events) == 0 {
		t.Fatal("viewer received nothing on join")
	}
	snap, ok := events[0].(StateEvent)
	if !ok {
		t.Fatalf("first event must be the join snapshot, got %T", events[0])
	}
	if !snap.State.Audio.Playing {
		t.Error("late joiner must see playing audio")
	}
	if snap.State.Audio.PositionMs != 1500 {
		t.Errorf("expected position 1500, got %d", snap.State.Audio.PositionMs)
	}
	if v.countAudioStarts() != 0 {
		t.Error("late joiner must not receive a separate audio_start for an utterance already in progress")
	}

	// A second viewer joining one second later computes an offset one
	// second larger.
	clock.Advance(time.Second)
	v2 := &fakeViewer{id: "viewer-2"}
	s.AddViewer(v2)
	snap2 := v2.events()[0].(StateEvent)
	if snap2.State.Audio.PositionMs != 2500 {
		t.Errorf("expected position 2500, got %d", snap2.State.Audio.PositionMs)
	}
}

func TestSession_JoinAfterExpiryGetsRestState(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	seq := s.NextUtteranceSeq()
	s.BeginUtterance(seq, "http://cdn/a.mp3", time.Second, Parse("Quick one."), nil)

	clock.Advance(5 * time.Second)

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)

	snap := v.events()[0].(StateEvent)
	if snap.State.Audio.Playing || snap.State.Audio.URL != "" {
		t.Errorf("expired utterance leaked to late joiner: %+v", snap.State.Audio)
	}
	if snap.State.Subtitle.Visible {
		t.Error("expired subtitle leaked to late joiner")
	}
}

func TestSession_NoDoubleStart(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)

	seq := s.NextUtteranceSeq()
	s.BeginUtterance(seq, "http://cdn/a.mp3", 3*time.Second, Parse("Hello!"), nil)

	// Several ticks pass; the subscribed viewer must still have seen
	// exactly one audio_start.
	for i := 0; i < 5; i++ {
		clock.Advance(50 * time.Millisecond)
		s.tick()
	}

	if got := v.countAudioStarts(); got != 1 {
		t.Errorf("expected exactly 1 audio_start, got %d", got)
	}
}

func TestSession_TickExpiryTransition(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)

	seq := s.NextUtteranceSeq()
	s.BeginUtterance(seq, "http://cdn/a.mp3", 200*time.Millisecond, Parse("Short."), nil)

	var transitions int
	playing := true
	for i := 0; i < 10; i++ {
		clock.Advance(50 * time.Millisecond)
		s.tick()
	}
	for _, e := range v.events() {
		se, ok := e.(StateEvent)
		if !ok {
			continue
		}
		elapsedOK := se.State.Audio.PositionMs <= se.State.Audio.DurationMs
		if se.State.Audio.Playing && !elapsedOK {
			t.Errorf("tick observed playing-but-expired state: %+v", se.State.Audio)
		}
		if playing && !se.State.Audio.Playing {
			transitions++
			playing = false
			if se.State.Avatar.MouthOpen != 0 {
				t.Errorf("mouthOpen not zero on expiry tick: %v", se.State.Avatar.MouthOpen)
			}
			if se.State.Subtitle.Visible {
				t.Error("subtitle visible on expiry tick")
			}
		}
	}
	if transitions != 1 {
		t.Errorf("expected exactly one playing->stopped transition, got %d", transitions)
	}
}

func TestSession_StaleSynthesisDiscarded(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	first := s.NextUtteranceSeq()
	second := s.NextUtteranceSeq()

	// The newer utterance resolves first.
	if !s.BeginUtterance(second, "http://cdn/new.mp3", 3*time.Second, Parse("New one."), nil) {
		t.Fatal("current utterance rejected")
	}
	// The older synthesis completes late; it must be ignored.
	if s.BeginUtterance(first, "http://cdn/old.mp3", 3*time.Second, Parse("Old one."), nil) {
		t.Fatal("stale utterance applied")
	}

	if snap := s.Snapshot(); snap.Audio.URL != "http://cdn/new.mp3" {
		t.Errorf("stale synthesis clobbered newer utterance: %q", snap.Audio.URL)
	}
}

func TestSession_ChatHistoryBounded(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.ChatHistoryLimit = 5
	s := NewSession("agent-1", "agent-1", cfg, clock.Now, zerolog.Nop())
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	for i := 0; i < 12; i++ {
		s.Chat(Message{ID: string(rune('a' + i)), Text: "hello", SentAt: clock.Now()})
	}

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)

	var history int
	for _, e := range v.events() {
		if _, ok := e.(ChatEvent); ok {
			history++
		}
	}
	if history != 5 {
		t.Errorf("expected 5 history messages, got %d", history)
	}
	if s.Info().Stats.MessageCount != 12 {
		t.Errorf("message count must be monotonic, got %d", s.Info().Stats.MessageCount)
	}
}

func TestSession_ViewerStats(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	a := &fakeViewer{id: "a"}
	b := &fakeViewer{id: "b"}
	s.AddViewer(a)
	s.AddViewer(b)
	s.RemoveViewer("a")
	s.AddViewer(&fakeViewer{id: "c"})

	info := s.Info()
	if info.ViewerCount != 2 {
		t.Errorf("expected 2 current viewers, got %d", info.ViewerCount)
	}
	if info.Stats.TotalViewers != 3 {
		t.Errorf("expected 3 total viewers, got %d", info.Stats.TotalViewers)
	}
	if info.Stats.PeakViewers != 2 {
		t.Errorf("expected peak 2, got %d", info.Stats.PeakViewers)
	}
}

func TestSession_EndNotifiesViewers(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)
	s.End()

	found := false
	for _, e := range v.events() {
		if _, ok := e.(StreamEndedEvent); ok {
			found = true
		}
	}
	if !found {
		t.Error("viewer not notified of stream end")
	}
}

func TestSession_SetPoseBroadcastsImmediately(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)
	before := len(v.events())

	happy := ExpressionHappy
	s.SetPose(Pose{Expression: &happy})

	events := v.events()
	if len(events) != before+1 {
		t.Fatalf("expected one event after setPose, got %d new", len(events)-before)
	}
	se, ok := events[len(events)-1].(StateEvent)
	if !ok || se.State.Avatar.Expression != ExpressionHappy {
		t.Errorf("pose update not broadcast: %+v", events[len(events)-1])
	}
}

func TestSession_SetPoseExpiresFinishedUtterance(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)

	seq := s.NextUtteranceSeq()
	s.BeginUtterance(seq, "http://cdn/a.mp3", time.Second, Parse("Short."), nil)

	// The utterance runs out with no tick in between.
	clock.Advance(2 * time.Second)

	happy := ExpressionHappy
	s.SetPose(Pose{Expression: &happy})

	events := v.events()
	se, ok := events[len(events)-1].(StateEvent)
	if !ok {
		t.Fatalf("expected state event, got %+v", events[len(events)-1])
	}
	if se.State.Audio.Playing {
		t.Errorf("setPose broadcast playing-but-expired state: position=%dms duration=%dms",
			se.State.Audio.PositionMs, se.State.Audio.DurationMs)
	}
	if se.State.Subtitle.Visible {
		t.Error("subtitle still visible after expiry")
	}
	if se.State.Avatar.MouthOpen != 0 {
		t.Errorf("mouthOpen not zero after expiry: %v", se.State.Avatar.MouthOpen)
	}
	if se.State.Avatar.Expression != ExpressionHappy {
		t.Errorf("pose update lost on expiry: %v", se.State.Avatar.Expression)
	}
}

func TestSession_MediaGatedOnCurrentUtterance(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(clock)
	s.Start("Agent Stream", "conn-1")
	defer s.End()

	v := &fakeViewer{id: "viewer-1"}
	s.AddViewer(v)

	first := s.NextUtteranceSeq()
	s.BeginUtterance(first, "", 2*time.Second, Parse("One [gif:cat]"), nil)

	second := s.NextUtteranceSeq()
	s.BeginUtterance(second, "", 2*time.Second, Parse("Two"), nil)

	// Media resolved for the superseded utterance is dropped.
	s.BroadcastMedia(first, "gif", "cat", "http://cdn/cat.gif")
	for _, e := range v.events() {
		if _, ok := e.(MediaEvent); ok {
			t.Fatal("stale media broadcast")
		}
	}

	s.BroadcastMedia(second, "gif", "dog", "http://cdn/dog.gif")
	found := false
	for _, e := range v.events() {
		if me, ok := e.(MediaEvent); ok && me.URL == "http://cdn/dog.gif" {
			found = true
		}
	}
	if !found {
		t.Error("current media not broadcast")
	}
}
