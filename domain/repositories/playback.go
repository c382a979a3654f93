package repositories

import "time"

// AudioSink abstracts an audio output capability. Chunks are 16-bit
// little-endian PCM and carry an absolute wall-clock start time assigned
// by the playback scheduler; the sink plays each chunk at its start time.
type AudioSink interface {
	// PlayAt queues one PCM chunk for playback at the given time.
	PlayAt(pcm []byte, at time.Time) error
	// Close releases the output device and discards queued audio.
	Close() error
}
