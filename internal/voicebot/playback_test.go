package voicebot

import (
	"sync"
	"testing"
	"time"

	"github.com/studyhall/voxley/domain/repositories"
)

type recordedPlay struct {
	at   time.Time
	size int
}

// recordingSink captures PlayAt calls for inspection.
type recordingSink struct {
	mu    sync.Mutex
	plays []recordedPlay
}

func (s *recordingSink) PlayAt(pcm []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, recordedPlay{at: at, size: len(pcm)})
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) recorded() []recordedPlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedPlay, len(s.plays))
	copy(out, s.plays)
	return out
}

func testAudioConfig() repositories.AudioConfig {
	return repositories.AudioConfig{SampleRate: 16000, Channels: 1, FrameSize: 2048}
}

func TestSchedulerAppliesLead(t *testing.T) {
	sink := &recordingSink{}
	sched := NewScheduler(sink, testAudioConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }

	start, err := sched.Enqueue(make([]byte, 16000)) // 500ms at 16kHz mono
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if want := now.Add(defaultLead); !start.Equal(want) {
		t.Errorf("first chunk start = %v, want %v", start, want)
	}
}

func TestSchedulerBackToBackChunks(t *testing.T) {
	sink := &recordingSink{}
	sched := NewScheduler(sink, testAudioConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }

	// Three chunks arriving in one burst. Each must start exactly where
	// the previous one ends.
	chunk := make([]byte, 16000) // 500ms
	var starts []time.Time
	for i := 0; i < 3; i++ {
		start, err := sched.Enqueue(chunk)
		if err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
		starts = append(starts, start)
	}

	first := now.Add(defaultLead)
	for i, start := range starts {
		want := first.Add(time.Duration(i) * 500 * time.Millisecond)
		if !start.Equal(want) {
			t.Errorf("chunk %d start = %v, want %v", i, start, want)
		}
	}

	plays := sink.recorded()
	if len(plays) != 3 {
		t.Fatalf("sink received %d chunks, want 3", len(plays))
	}
	for i := 1; i < len(plays); i++ {
		prevEnd := plays[i-1].at.Add(500 * time.Millisecond)
		if plays[i].at.Before(prevEnd) {
			t.Errorf("chunk %d starts before chunk %d ends", i, i-1)
		}
	}
}

func TestSchedulerLateChunkSchedulesFromNow(t *testing.T) {
	sink := &recordingSink{}
	sched := NewScheduler(sink, testAudioConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }

	first, err := sched.Enqueue(make([]byte, 3200)) // 100ms
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// The next chunk arrives after the first one already finished. It
	// schedules relative to now, not to the stale cursor.
	now = now.Add(2 * time.Second)
	second, err := sched.Enqueue(make([]byte, 3200))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if want := now.Add(defaultLead); !second.Equal(want) {
		t.Errorf("late chunk start = %v, want %v", second, want)
	}
	if !second.After(first) {
		t.Error("start times must stay monotonic")
	}
}

func TestSchedulerResetDropsCursor(t *testing.T) {
	sink := &recordingSink{}
	sched := NewScheduler(sink, testAudioConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }

	if _, err := sched.Enqueue(make([]byte, 320000)); err != nil { // 10s
		t.Fatalf("enqueue failed: %v", err)
	}
	sched.Reset()

	start, err := sched.Enqueue(make([]byte, 3200))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if want := now.Add(defaultLead); !start.Equal(want) {
		t.Errorf("post-reset start = %v, want %v", start, want)
	}
}

func TestSchedulerEncodedChunkAdvancesCursor(t *testing.T) {
	sink := &recordingSink{}
	sched := NewScheduler(sink, testAudioConfig())

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return now }

	first, err := sched.EnqueueEncoded(make([]byte, 8000))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	second, err := sched.EnqueueEncoded(make([]byte, 8000))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	// The estimate matters only for ordering: the second chunk must not
	// start before the first one's estimated end.
	if !second.After(first) {
		t.Error("encoded chunks must keep monotonic start times")
	}
	if len(sink.recorded()) != 2 {
		t.Fatal("sink should receive both encoded chunks")
	}
}

func TestPCMDuration(t *testing.T) {
	cfg := testAudioConfig() // 32000 bytes/s
	tests := []struct {
		bytes int
		want  time.Duration
	}{
		{32000, time.Second},
		{16000, 500 * time.Millisecond},
		{0, 0},
	}
	for _, tc := range tests {
		if got := pcmDuration(tc.bytes, cfg); got != tc.want {
			t.Errorf("pcmDuration(%d) = %v, want %v", tc.bytes, got, tc.want)
		}
	}
}
