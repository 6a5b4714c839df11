package engine

import (
	"testing"
	"time"
)

func utterance(text string) (ParsedUtterance, []string) {
	p := Parse(text)
	return p, DefaultChunker().Chunk(p.DisplayText)
}

func TestBroadcastState_BeginUtteranceImmediateEffects(t *testing.T) {
	b := NewBroadcastState()
	now := time.Unix(1000, 0)

	parsed, chunks := utterance("[excited] [wave] Hi chat! [gif:hello]")
	b.BeginUtterance("http://cdn/a.mp3", 3*time.Second, parsed, chunks, nil, now)

	snap := b.Snapshot(now)
	if snap.Avatar.Expression != ExpressionExcited {
		t.Errorf("expected excited, got %q", snap.Avatar.Expression)
	}
	if snap.Avatar.Gesture != GestureWave {
		t.Errorf("expected wave, got %q", snap.Avatar.Gesture)
	}
	if !snap.Subtitle.Visible || snap.Subtitle.Text != "Hi chat!" {
		t.Errorf("expected visible first chunk, got %+v", snap.Subtitle)
	}
	if !snap.Audio.Playing || snap.Audio.URL != "http://cdn/a.mp3" {
		t.Errorf("expected playing audio, got %+v", snap.Audio)
	}
	if snap.Audio.PositionMs != 0 {
		t.Errorf("expected position 0 at start, got %d", snap.Audio.PositionMs)
	}
}

func TestBroadcastState_AdvanceDerivesMouthAndSubtitle(t *testing.T) {
	b := NewBroadcastState()
	now := time.Unix(1000, 0)

	parsed, chunks := utterance("First part here. Second part here. Third part here.")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %v", chunks)
	}
	b.BeginUtterance("http://cdn/a.mp3", 3*time.Second, parsed, chunks, nil, now)

	// Mid-utterance: mouth moves, subtitle advances to the middle chunk.
	mid := now.Add(1500 * time.Millisecond)
	b.Advance(mid)
	snap := b.Snapshot(mid)
	if snap.Avatar.MouthOpen < 0 || snap.Avatar.MouthOpen > 1 {
		t.Errorf("mouthOpen out of range: %v", snap.Avatar.MouthOpen)
	}
	if snap.Subtitle.Text != chunks[1] {
		t.Errorf("expected middle chunk %q, got %q", chunks[1], snap.Subtitle.Text)
	}
	if snap.Audio.PositionMs != 1500 {
		t.Errorf("expected position 1500, got %d", snap.Audio.PositionMs)
	}
}

func TestBroadcastState_ExpiryClearsAtomically(t *testing.T) {
	b := NewBroadcastState()
	now := time.Unix(1000, 0)

	parsed, chunks := utterance("[dance] Something short.")
	b.BeginUtterance("http://cdn/a.mp3", 2*time.Second, parsed, chunks, nil, now)

	after := now.Add(2*time.Second + 10*time.Millisecond)
	b.Advance(after)

	snap := b.Snapshot(after)
	if snap.Audio.Playing {
		t.Error("still playing after duration elapsed")
	}
	if snap.Avatar.MouthOpen != 0 {
		t.Errorf("mouthOpen not reset: %v", snap.Avatar.MouthOpen)
	}
	if snap.Subtitle.Visible || snap.Subtitle.Text != "" {
		t.Errorf("subtitle not cleared: %+v", snap.Subtitle)
	}
	if snap.Audio.URL != "" {
		t.Errorf("audio url not cleared: %q", snap.Audio.URL)
	}
	if snap.Avatar.Gesture != "" {
		t.Errorf("gesture not cleared: %q", snap.Avatar.Gesture)
	}
	// Expression survives expiry; only the one-shot state clears.
	if snap.Avatar.Expression == "" {
		t.Errorf("expression lost on expiry")
	}
}

func TestBroadcastState_SnapshotClampsPosition(t *testing.T) {
	b := NewBroadcastState()
	now := time.Unix(1000, 0)

	parsed, chunks := utterance("Short.")
	b.BeginUtterance("http://cdn/a.mp3", time.Second, parsed, chunks, nil, now)

	// Snapshot taken past the end without an Advance in between must
	// still not report a position beyond the duration.
	snap := b.Snapshot(now.Add(5 * time.Second))
	if snap.Audio.PositionMs > snap.Audio.DurationMs {
		t.Errorf("position %d exceeds duration %d", snap.Audio.PositionMs, snap.Audio.DurationMs)
	}
}

func TestBroadcastState_SetPoseLeavesAudioUntouched(t *testing.T) {
	b := NewBroadcastState()
	now := time.Unix(1000, 0)

	happy := ExpressionHappy
	b.SetPose(Pose{Expression: &happy})

	snap := b.Snapshot(now)
	if snap.Avatar.Expression != ExpressionHappy {
		t.Errorf("expected happy, got %q", snap.Avatar.Expression)
	}
	if snap.Audio.Playing || snap.Audio.URL != "" || snap.Audio.DurationMs != 0 {
		t.Errorf("setPose touched audio fields: %+v", snap.Audio)
	}

	look := 0.5
	b.SetPose(Pose{LookX: &look})
	snap = b.Snapshot(now)
	if snap.Avatar.LookX != 0.5 {
		t.Errorf("expected lookX 0.5, got %v", snap.Avatar.LookX)
	}
	if snap.Avatar.Expression != ExpressionHappy {
		t.Errorf("partial pose reset expression: %q", snap.Avatar.Expression)
	}
}

func TestMouthAmplitude_DeterministicAndBounded(t *testing.T) {
	for ms := 0; ms < 3000; ms += 17 {
		elapsed := time.Duration(ms) * time.Millisecond
		v := mouthAmplitude(elapsed)
		if v < 0 || v > 1 {
			t.Fatalf("amplitude out of range at %v: %v", elapsed, v)
		}
		if v != mouthAmplitude(elapsed) {
			t.Fatalf("amplitude not deterministic at %v", elapsed)
		}
	}
}

func TestBroadcastState_OverwriteInFlightUtterance(t *testing.T) {
	b := NewBroadcastState()
	now := time.Unix(1000, 0)

	p1, c1 := utterance("[sad] The first thing.")
	b.BeginUtterance("http://cdn/a.mp3", 10*time.Second, p1, c1, nil, now)

	later := now.Add(time.Second)
	p2, c2 := utterance("[happy] The second thing.")
	b.BeginUtterance("http://cdn/b.mp3", 3*time.Second, p2, c2, nil, later)

	snap := b.Snapshot(later)
	if snap.Audio.URL != "http://cdn/b.mp3" {
		t.Errorf("expected second audio, got %q", snap.Audio.URL)
	}
	if snap.Audio.PositionMs != 0 {
		t.Errorf("new utterance should restart position, got %d", snap.Audio.PositionMs)
	}
	if snap.Avatar.Expression != ExpressionHappy {
		t.Errorf("expected happy, got %q", snap.Avatar.Expression)
	}
}
