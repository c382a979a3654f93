package voicebot

// VADConfig tunes the energy-based voice activity detector.
type VADConfig struct {
	// Threshold is the smoothed amplitude above which a frame counts as
	// speech.
	Threshold float64 `json:"threshold"`
	// Smoothing is the exponential smoothing factor applied per frame.
	Smoothing float64 `json:"smoothing"`
	// Gain scales raw RMS before clamping to [0, 1].
	Gain float64 `json:"gain"`
}

// DefaultVADConfig returns the thresholds used against the 16 kHz mono
// capture stream.
func DefaultVADConfig() VADConfig {
	return VADConfig{
		Threshold: 0.01,
		Smoothing: 0.22,
		Gain:      2.5,
	}
}

// Edge reports a transition in the speaking classification.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeStart
	EdgeStop
)

// String returns a human-readable edge name.
func (e Edge) String() string {
	switch e {
	case EdgeStart:
		return "START"
	case EdgeStop:
		return "STOP"
	default:
		return "NONE"
	}
}

// Detector classifies captured frames as speech or silence using smoothed
// RMS energy. It is owned by the controller loop and is not safe for
// concurrent use.
type Detector struct {
	cfg      VADConfig
	smoothed float64
	speaking bool
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(cfg VADConfig) *Detector {
	if cfg.Threshold == 0 {
		cfg = DefaultVADConfig()
	}
	return &Detector{cfg: cfg}
}

// Process updates the detector with one frame. suppress forces the frame
// to classify as non-speech regardless of energy, which is how user-speech
// detection is muted while the AI is speaking.
func (d *Detector) Process(frame []float32, suppress bool) Edge {
	amp := rms(frame) * d.cfg.Gain
	if amp > 1 {
		amp = 1
	}
	d.smoothed += d.cfg.Smoothing * (amp - d.smoothed)

	speaking := d.smoothed > d.cfg.Threshold && !suppress

	switch {
	case speaking && !d.speaking:
		d.speaking = true
		return EdgeStart
	case !speaking && d.speaking:
		d.speaking = false
		return EdgeStop
	default:
		return EdgeNone
	}
}

// Speaking reports the current classification.
func (d *Detector) Speaking() bool {
	return d.speaking
}

// Amplitude returns the smoothed amplitude estimate in [0, 1].
func (d *Detector) Amplitude() float64 {
	return d.smoothed
}

// Reset clears detector state for a new session.
func (d *Detector) Reset() {
	d.smoothed = 0
	d.speaking = false
}
