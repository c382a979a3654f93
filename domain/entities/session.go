package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// VoiceName identifies one of the backend's synthesis voices.
type VoiceName string

const (
	VoiceCalm   VoiceName = "calm"
	VoiceBright VoiceName = "bright"
	VoiceTutor  VoiceName = "tutor"
)

// TranscriptEntry is one finalized user utterance.
type TranscriptEntry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ResponseEntry is one AI reply surfaced during the session.
type ResponseEntry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// VoiceSession holds the transient state of one voice conversation.
// Nothing here is persisted; the session lives exactly as long as the
// controller that owns it.
type VoiceSession struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Voice        VoiceName `json:"voice"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	EnableAI     bool      `json:"enable_ai"`
	StartedAt    time.Time `json:"started_at"`

	// PartialTranscript is the in-progress hypothesis for the current
	// utterance. It is replaced wholesale by each incoming partial.
	PartialTranscript string `json:"partial_transcript"`

	// FinalTranscripts and AIResponses are append-only.
	FinalTranscripts []TranscriptEntry `json:"final_transcripts"`
	AIResponses      []ResponseEntry   `json:"ai_responses"`
}

// NewVoiceSession creates a session with a client-generated id.
func NewVoiceSession(userID string, voice VoiceName, systemPrompt string, enableAI bool) *VoiceSession {
	return &VoiceSession{
		ID:               uuid.NewString(),
		UserID:           userID,
		Voice:            voice,
		SystemPrompt:     systemPrompt,
		EnableAI:         enableAI,
		StartedAt:        time.Now(),
		FinalTranscripts: make([]TranscriptEntry, 0),
		AIResponses:      make([]ResponseEntry, 0),
	}
}

// SetPartial replaces the current partial transcript hypothesis.
func (s *VoiceSession) SetPartial(text string) {
	s.PartialTranscript = text
}

// ClearPartial drops the in-progress hypothesis, typically when a new
// turn begins after the previous one ended.
func (s *VoiceSession) ClearPartial() {
	s.PartialTranscript = ""
}

// AppendFinal records a finalized utterance and resets the partial
// hypothesis it supersedes.
func (s *VoiceSession) AppendFinal(text string) {
	s.FinalTranscripts = append(s.FinalTranscripts, TranscriptEntry{
		Text:      text,
		Timestamp: time.Now(),
	})
	s.PartialTranscript = ""
}

// AppendResponse records an AI reply.
func (s *VoiceSession) AppendResponse(text string) {
	s.AIResponses = append(s.AIResponses, ResponseEntry{
		Text:      text,
		Timestamp: time.Now(),
	})
}

// Clear empties every transcript accumulator without touching session
// identity or the network session.
func (s *VoiceSession) Clear() {
	s.PartialTranscript = ""
	s.FinalTranscripts = s.FinalTranscripts[:0]
	s.AIResponses = s.AIResponses[:0]
}

// Validate validates the session data.
func (s *VoiceSession) Validate() error {
	if s.ID == "" {
		return errors.New("session id is required")
	}
	if s.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}
