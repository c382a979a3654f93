package voicebot

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/studyhall/voxley/domain/repositories"
)

// EncodePCM16 converts a float32 frame in [-1, 1] to 16-bit little-endian
// PCM, the only binary format the voice endpoint accepts.
func EncodePCM16(frame []float32) []byte {
	out := make([]byte, len(frame)*2)
	for i, sample := range frame {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample*math.MaxInt16)))
	}
	return out
}

// rms computes root-mean-square energy of a frame.
func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// pcmDuration returns the playback duration of a 16-bit PCM payload.
func pcmDuration(byteLen int, cfg repositories.AudioConfig) time.Duration {
	bps := cfg.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(byteLen) * time.Second / time.Duration(bps)
}

// compressedDuration estimates the playback duration of a compressed
// (e.g. MPEG) payload assuming roughly 4:1 compression against the
// session's PCM byte rate. Only the playback cursor consumes this, so an
// estimate is enough to keep scheduling monotonic.
func compressedDuration(byteLen int, cfg repositories.AudioConfig) time.Duration {
	return pcmDuration(byteLen*4, cfg)
}
