package voicebot

import (
	"time"

	"github.com/studyhall/voxley/domain/repositories"
)

// defaultLead is the minimum headroom between scheduling a chunk and its
// playback start.
const defaultLead = 50 * time.Millisecond

// Scheduler assigns gap-free, order-preserving start times to incoming AI
// audio chunks. Each chunk starts at max(now+lead, end of the previous
// chunk), so jittery arrival never causes overlap and chunks that arrive
// early play back to back. Owned by the controller loop.
type Scheduler struct {
	sink repositories.AudioSink
	cfg  repositories.AudioConfig
	lead time.Duration

	now    func() time.Time
	cursor time.Time
}

// NewScheduler creates a scheduler feeding the given sink.
func NewScheduler(sink repositories.AudioSink, cfg repositories.AudioConfig) *Scheduler {
	return &Scheduler{
		sink: sink,
		cfg:  cfg,
		lead: defaultLead,
		now:  time.Now,
	}
}

// Enqueue schedules one PCM chunk and advances the cursor by its
// duration. The assigned start time is returned for observability.
func (s *Scheduler) Enqueue(pcm []byte) (time.Time, error) {
	return s.enqueue(pcm, pcmDuration(len(pcm), s.cfg))
}

// EnqueueEncoded schedules a compressed payload (e.g. a complete MPEG
// reply). The cursor advances by an estimated duration; the sink is
// responsible for decoding.
func (s *Scheduler) EnqueueEncoded(data []byte) (time.Time, error) {
	return s.enqueue(data, compressedDuration(len(data), s.cfg))
}

func (s *Scheduler) enqueue(data []byte, dur time.Duration) (time.Time, error) {
	start := s.now().Add(s.lead)
	if s.cursor.After(start) {
		start = s.cursor
	}
	s.cursor = start.Add(dur)
	return start, s.sink.PlayAt(data, start)
}

// Reset drops the cursor so the next chunk schedules relative to now,
// used when a new AI reply begins after silence.
func (s *Scheduler) Reset() {
	s.cursor = time.Time{}
}
