package audio

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyhall/voxley/domain/repositories"
)

// FFplaySink plays assistant audio through a long-lived ffplay process
// reading from stdin. Chunks are written when their scheduled start time
// arrives, in submission order.
type FFplaySink struct {
	format     string
	sampleRate int
	channels   int
	logger     *zap.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	queue  chan scheduledChunk
	done   chan struct{}
	closed bool
}

type scheduledChunk struct {
	data []byte
	at   time.Time
}

var _ repositories.AudioSink = (*FFplaySink)(nil)

// NewFFplaySink spawns ffplay for the given stream format. Use "s16le"
// for raw PCM or a container format such as "mp3" when the server sends
// compressed chunks.
func NewFFplaySink(format string, cfg repositories.AudioConfig, logger *zap.Logger) (*FFplaySink, error) {
	args := []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
	if format == "s16le" {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(cfg.SampleRate),
			"-ac", strconv.Itoa(cfg.Channels),
		)
	} else {
		args = append(args, "-f", format)
	}
	args = append(args, "-i", "pipe:0")

	cmd := exec.Command("ffplay", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open ffplay stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffplay: %w", err)
	}

	s := &FFplaySink{
		format:     format,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		logger:     logger,
		cmd:        cmd,
		stdin:      stdin,
		queue:      make(chan scheduledChunk, 64),
		done:       make(chan struct{}),
	}
	go s.writeLoop()

	logger.Info("Speaker started", zap.String("format", format), zap.Int("pid", cmd.Process.Pid))
	return s, nil
}

func (s *FFplaySink) writeLoop() {
	defer close(s.done)
	for chunk := range s.queue {
		if wait := time.Until(chunk.at); wait > 0 {
			time.Sleep(wait)
		}
		if _, err := s.stdin.Write(chunk.data); err != nil {
			s.logger.Warn("Speaker write failed", zap.Error(err))
			return
		}
	}
}

// PlayAt queues one chunk for playback at the given time. It never blocks
// the caller for the duration of the audio.
func (s *FFplaySink) PlayAt(pcm []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("speaker closed")
	}
	data := make([]byte, len(pcm))
	copy(data, pcm)
	select {
	case s.queue <- scheduledChunk{data: data, at: at}:
		return nil
	default:
		return fmt.Errorf("speaker queue full")
	}
}

func (s *FFplaySink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
	}
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		s.logger.Debug("ffplay exited", zap.Error(err))
	}
	return nil
}

// DiscardSink drops assistant audio. Used when no local player is
// available so the rest of the session still works.
type DiscardSink struct{}

var _ repositories.AudioSink = DiscardSink{}

func (DiscardSink) PlayAt(pcm []byte, at time.Time) error { return nil }
func (DiscardSink) Close() error                          { return nil }
