package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/studyhall/voxley/domain/repositories"
)

// ScriptedSource replays a fixed sequence of frames at a configurable
// interval. It stands in for the microphone in tests and headless runs.
type ScriptedSource struct {
	frames   [][]float32
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ repositories.AudioSource = (*ScriptedSource)(nil)

// NewScriptedSource creates a source that emits the given frames in order,
// one per interval, then closes its channel.
func NewScriptedSource(frames [][]float32, interval time.Duration) *ScriptedSource {
	return &ScriptedSource{frames: frames, interval: interval}
}

func (s *ScriptedSource) Start(ctx context.Context) (<-chan []float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, fmt.Errorf("scripted source already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	out := make(chan []float32)
	go func() {
		defer close(out)
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for _, frame := range s.frames {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *ScriptedSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.cancel()
	<-s.done
	return nil
}

// ToneFrame builds a frame of the given size filled with a sine wave at the
// requested peak amplitude. Amplitude above the speech threshold makes the
// detector report speech.
func ToneFrame(size int, amplitude float64) []float32 {
	frame := make([]float32, size)
	for i := range frame {
		frame[i] = float32(amplitude * math.Sin(2*math.Pi*float64(i)/64))
	}
	return frame
}

// SilenceFrame builds a frame of zeros.
func SilenceFrame(size int) []float32 {
	return make([]float32, size)
}

// Playback records one scheduled chunk delivered to a BufferSink.
type Playback struct {
	At   time.Time
	Size int
}

// BufferSink records playback requests instead of producing sound. Tests
// inspect the recorded schedule.
type BufferSink struct {
	mu     sync.Mutex
	played []Playback
	closed bool
}

var _ repositories.AudioSink = (*BufferSink)(nil)

func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (b *BufferSink) PlayAt(pcm []byte, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("sink closed")
	}
	b.played = append(b.played, Playback{At: at, Size: len(pcm)})
	return nil
}

func (b *BufferSink) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Played returns a copy of the recorded schedule.
func (b *BufferSink) Played() []Playback {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Playback, len(b.played))
	copy(out, b.played)
	return out
}
