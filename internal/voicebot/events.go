package voicebot

// EventKind labels the session events a controller emits to observers.
type EventKind string

const (
	// EventStatusChanged fires on connection-state or turn-state changes.
	EventStatusChanged EventKind = "status_changed"
	// EventPartialTranscript carries the latest in-progress hypothesis.
	EventPartialTranscript EventKind = "partial_transcript"
	// EventFinalTranscript carries one finalized utterance.
	EventFinalTranscript EventKind = "final_transcript"
	// EventAIResponse carries one AI reply text.
	EventAIResponse EventKind = "ai_response"
	// EventTurnEnded fires when the user's turn ends, by silence or
	// manual trigger.
	EventTurnEnded EventKind = "turn_ended"
	// EventTurnResumed fires when speech resumes after an ended turn;
	// observers drop the stale partial transcript.
	EventTurnResumed EventKind = "turn_resumed"
	// EventSessionError carries a server-reported, non-fatal error.
	EventSessionError EventKind = "session_error"
	// EventCleared fires when transcript accumulators are cleared.
	EventCleared EventKind = "cleared"
)

// Event is one observable session occurrence.
type Event struct {
	Kind   EventKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Status Status    `json:"status"`
}
