package api

import (
	"github.com/studyhall/voxley/domain/entities"
	"github.com/studyhall/voxley/internal/voicebot"
)

// LoginRequest represents the request payload for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request payload for account creation
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChatRequest represents one tutor chat exchange
type ChatRequest struct {
	History []entities.ChatMessage `json:"history,omitempty"`
	Message string                 `json:"message" validate:"required"`
}

// GenerateRequest asks for flashcards or quiz questions on a topic
type GenerateRequest struct {
	Topic string `json:"topic" validate:"required"`
	Count int    `json:"count,omitempty"`
}

// QuizSubmitRequest carries answers keyed by question id
type QuizSubmitRequest struct {
	Answers map[string]string `json:"answers" validate:"required"`
}

// PaymentConfirmRequest confirms a checkout session
type PaymentConfirmRequest struct {
	CheckoutSessionID string `json:"checkout_session_id" validate:"required"`
}

// CalendarExchangeRequest completes the calendar OAuth handshake
type CalendarExchangeRequest struct {
	Code string `json:"code" validate:"required"`
}

// VoiceStatusResponse is the combined live view of the voice session
type VoiceStatusResponse struct {
	Status  voicebot.Status        `json:"status"`
	Session *entities.VoiceSession `json:"session,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
