package voicebot

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType defines the type of a voice WebSocket control message.
type MessageType string

// Client → server message types.
const (
	MessageTypeInit    MessageType = "init"
	MessageTypeStart   MessageType = "start"
	MessageTypeStop    MessageType = "stop"
	MessageTypeTurnEnd MessageType = "turn_end"
)

// Server → client message types. Several arrive under two names depending
// on backend version; decoding normalizes each pair to one event.
const (
	MessageTypeReady              MessageType = "ready"
	MessageTypeSessionInitialized MessageType = "session_initialized"
	MessageTypePartialTranscript  MessageType = "partial_transcript"
	MessageTypeRealtimeTranscript MessageType = "realtime_transcript"
	MessageTypeFinalTranscript    MessageType = "final_transcript"
	MessageTypeAIResponseText     MessageType = "ai_response_text"
	MessageTypeAIResponse         MessageType = "ai_response"
	MessageTypeAIAudioChunk       MessageType = "ai_response_audio_chunk"
	MessageTypeAIAudio            MessageType = "ai_audio"
	MessageTypeAIAudioEnd         MessageType = "ai_response_audio_end"
	MessageTypeError              MessageType = "error"
	MessageTypeAIError            MessageType = "ai_error"
)

// Turn-end reasons.
const (
	ReasonManualTrigger   = "manual_trigger"
	ReasonSilenceDetected = "silence_detected"
)

// InitMessage establishes session parameters after the socket opens.
type InitMessage struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"sessionId"`
	UserID       string      `json:"userId"`
	AuthToken    string      `json:"authToken"`
	EnableAI     bool        `json:"enableAI"`
	AIVoice      string      `json:"aiVoice"`
	SystemPrompt string      `json:"systemPrompt,omitempty"`
}

// StartMessage begins or resumes audio streaming for a session.
type StartMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Resume    bool        `json:"resume,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// StopMessage ends the session.
type StopMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
}

// TurnEndMessage signals the end of the current user utterance.
type TurnEndMessage struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId"`
	Reason    string      `json:"reason"`
}

// NewInitMessage builds the init message for a session.
func NewInitMessage(sessionID, userID, authToken string, enableAI bool, voice, systemPrompt string) *InitMessage {
	return &InitMessage{
		Type:         MessageTypeInit,
		SessionID:    sessionID,
		UserID:       userID,
		AuthToken:    authToken,
		EnableAI:     enableAI,
		AIVoice:      voice,
		SystemPrompt: systemPrompt,
	}
}

// ServerEvent is the normalized form of one server → client message.
type ServerEvent interface {
	serverEvent()
}

// ReadyEvent acknowledges init; the pending start may now be sent.
type ReadyEvent struct {
	SessionID string
}

// PartialTranscriptEvent is an incremental speech-to-text hypothesis.
type PartialTranscriptEvent struct {
	Text    string
	IsFinal bool
}

// FinalTranscriptEvent is a finalized utterance.
type FinalTranscriptEvent struct {
	Text string
}

// AIResponseTextEvent is the AI reply text.
type AIResponseTextEvent struct {
	Text string
}

// AIAudioChunkEvent is one chunk of streamed AI speech audio. Audio is
// 16-bit PCM unless MimeType says otherwise (e.g. audio/mpeg).
type AIAudioChunkEvent struct {
	Audio    []byte
	MimeType string
}

// AIAudioEndEvent marks the end of the AI's spoken reply.
type AIAudioEndEvent struct{}

// ServerErrorEvent is a non-fatal error surfaced by the server.
type ServerErrorEvent struct {
	Message string
}

func (ReadyEvent) serverEvent()             {}
func (PartialTranscriptEvent) serverEvent() {}
func (FinalTranscriptEvent) serverEvent()   {}
func (AIResponseTextEvent) serverEvent()    {}
func (AIAudioChunkEvent) serverEvent()      {}
func (AIAudioEndEvent) serverEvent()        {}
func (ServerErrorEvent) serverEvent()       {}

var (
	// ErrMalformedMessage marks a text frame that is not valid JSON.
	// Such frames are dropped, never surfaced as session errors.
	ErrMalformedMessage = errors.New("malformed server message")
	// ErrUnknownMessageType marks a well-formed message of a type this
	// client does not understand.
	ErrUnknownMessageType = errors.New("unknown server message type")
)

// serverEnvelope is the superset of fields across all server messages.
type serverEnvelope struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Text      string      `json:"text,omitempty"`
	IsFinal   bool        `json:"is_final,omitempty"`
	Frame     string      `json:"frame,omitempty"`     // base64 PCM
	AudioData string      `json:"audioData,omitempty"` // base64, any mime
	MimeType  string      `json:"mimeType,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// DecodeServerMessage parses one text frame into a normalized event.
func DecodeServerMessage(data []byte) (ServerEvent, error) {
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case MessageTypeReady, MessageTypeSessionInitialized:
		return ReadyEvent{SessionID: env.SessionID}, nil

	case MessageTypePartialTranscript, MessageTypeRealtimeTranscript:
		return PartialTranscriptEvent{Text: env.Text, IsFinal: env.IsFinal}, nil

	case MessageTypeFinalTranscript:
		return FinalTranscriptEvent{Text: env.Text}, nil

	case MessageTypeAIResponseText, MessageTypeAIResponse:
		return AIResponseTextEvent{Text: env.Text}, nil

	case MessageTypeAIAudioChunk, MessageTypeAIAudio:
		return decodeAudioChunk(env)

	case MessageTypeAIAudioEnd:
		return AIAudioEndEvent{}, nil

	case MessageTypeError, MessageTypeAIError:
		return ServerErrorEvent{Message: env.Message}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}

func decodeAudioChunk(env serverEnvelope) (ServerEvent, error) {
	payload := env.Frame
	mime := "audio/pcm"
	if payload == "" {
		payload = env.AudioData
		if env.MimeType != "" {
			mime = env.MimeType
		}
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: audio chunk without payload", ErrMalformedMessage)
	}

	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: bad audio encoding: %v", ErrMalformedMessage, err)
	}
	return AIAudioChunkEvent{Audio: audio, MimeType: mime}, nil
}
