package entities

import (
	"errors"
	"time"
)

// User represents a learner account as returned by the platform API.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Plan      string    `json:"plan,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is a single message in a tutor chat exchange.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Flashcard is one generated study card.
type Flashcard struct {
	ID     string `json:"id"`
	Front  string `json:"front"`
	Back   string `json:"back"`
	Topic  string `json:"topic,omitempty"`
	Source string `json:"source,omitempty"`
}

// QuizQuestion is one question from a generated quiz.
type QuizQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
}

// QuizResult is the backend's grading of a submitted quiz.
type QuizResult struct {
	Score    float64           `json:"score"`
	Total    int               `json:"total"`
	Correct  int               `json:"correct"`
	Feedback map[string]string `json:"feedback,omitempty"`
}

// TranscriptionResult is the outcome of an audio transcription upload.
type TranscriptionResult struct {
	Text       string  `json:"text"`
	DurationMs int64   `json:"duration_ms"`
	Confidence float64 `json:"confidence,omitempty"`
}

// DashboardSummary aggregates the learner's progress view.
type DashboardSummary struct {
	StreakDays     int       `json:"streak_days"`
	MinutesStudied int       `json:"minutes_studied"`
	CardsReviewed  int       `json:"cards_reviewed"`
	QuizAverage    float64   `json:"quiz_average"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// PaymentConfirmation is the backend's acknowledgment of a checkout.
type PaymentConfirmation struct {
	Confirmed bool   `json:"confirmed"`
	Plan      string `json:"plan"`
	Receipt   string `json:"receipt,omitempty"`
}

// CalendarAuth carries the state of a Google Calendar OAuth exchange.
type CalendarAuth struct {
	AuthURL   string    `json:"auth_url,omitempty"`
	Connected bool      `json:"connected"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Domain validation methods
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
