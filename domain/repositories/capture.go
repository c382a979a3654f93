package repositories

import "context"

// AudioConfig represents the audio format a capability produces or consumes.
type AudioConfig struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
	// FrameSize is the number of samples per captured frame.
	FrameSize int `json:"frame_size"`
}

// DefaultAudioConfig is the format the voice endpoint expects:
// 16 kHz mono with 2048-sample capture frames.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate: 16000,
		Channels:   1,
		FrameSize:  2048,
	}
}

// BytesPerSecond returns the 16-bit PCM byte rate for this config.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * 2
}

// AudioSource abstracts a microphone-like capture capability. It yields
// successive fixed-size frames of float32 PCM in [-1, 1] via the returned
// channel until Stop is called or the context is cancelled.
type AudioSource interface {
	// Start begins capture. The returned channel is closed when capture
	// ends. Capture must never block on downstream consumers.
	Start(ctx context.Context) (<-chan []float32, error)
	// Stop releases the capture device. Safe to call more than once.
	Stop() error
}
