package voicebot

// ConnectionState tracks the WebSocket lifecycle. Transitions are driven
// solely by socket events; the presentation layer only reads it.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateReady
	StateClosed
	StateError
)

// String returns a human-readable state name.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// turnState folds the session's turn-taking flags into one place with
// named transitions, so "user speaking" and "AI speaking" can never be
// set together.
type turnState struct {
	userSpeaking bool
	aiSpeaking   bool
	turnEnded    bool
	userStopping bool
}

// beginUserSpeech marks the user's utterance onset. A no-op while the AI
// holds the floor; the detector suppresses speech classification during
// AI playback, so reaching this with aiSpeaking set would be a bug.
func (t *turnState) beginUserSpeech() bool {
	if t.aiSpeaking {
		return false
	}
	t.userSpeaking = true
	return true
}

func (t *turnState) endUserSpeech() {
	t.userSpeaking = false
}

// endTurn marks the current user turn as explicitly over, by silence or
// by manual trigger.
func (t *turnState) endTurn() {
	t.userSpeaking = false
	t.turnEnded = true
}

// resumeTurn clears the turn-ended mark when a new utterance begins.
func (t *turnState) resumeTurn() {
	t.turnEnded = false
}

// beginAISpeech gives the AI the floor, displacing any user-speech mark.
func (t *turnState) beginAISpeech() {
	t.userSpeaking = false
	t.aiSpeaking = true
}

func (t *turnState) endAISpeech() {
	t.aiSpeaking = false
}

// Status is the controller's observable state snapshot.
type Status struct {
	Connection   string  `json:"connection"`
	SessionID    string  `json:"session_id,omitempty"`
	Recording    bool    `json:"recording"`
	UserSpeaking bool    `json:"user_speaking"`
	AISpeaking   bool    `json:"ai_speaking"`
	TurnEnded    bool    `json:"turn_ended"`
	Amplitude    float64 `json:"amplitude"`
	Error        string  `json:"error,omitempty"`
}
