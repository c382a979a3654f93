package repositories

import (
	"context"
	"io"

	"github.com/studyhall/voxley/domain/entities"
)

// Credentials carries a learner's login input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthSession is the backend's answer to a successful login.
type AuthSession struct {
	Token     string        `json:"token"`
	ExpiresAt int64         `json:"expires_at"`
	User      entities.User `json:"user"`
}

// AuthService authenticates against the platform API.
type AuthService interface {
	Login(ctx context.Context, creds Credentials) (*AuthSession, error)
	Register(ctx context.Context, name string, creds Credentials) (*AuthSession, error)
}

// TutorService is the AI chat endpoint.
type TutorService interface {
	SendChat(ctx context.Context, history []entities.ChatMessage, message string) (*entities.ChatMessage, error)
}

// StudyService covers flashcard and quiz generation/grading.
type StudyService interface {
	GenerateFlashcards(ctx context.Context, topic string, count int) ([]entities.Flashcard, error)
	GenerateQuiz(ctx context.Context, topic string, count int) ([]entities.QuizQuestion, error)
	SubmitQuiz(ctx context.Context, quizID string, answers map[string]string) (*entities.QuizResult, error)
}

// TranscriptionService uploads recorded audio for offline transcription.
type TranscriptionService interface {
	// Transcribe uploads the audio stream (any container the backend
	// advertises) and returns the finished transcription.
	Transcribe(ctx context.Context, filename string, audio io.Reader) (*entities.TranscriptionResult, error)
}

// DashboardService fetches the learner's progress summary.
type DashboardService interface {
	GetDashboard(ctx context.Context) (*entities.DashboardSummary, error)
}

// PaymentService confirms checkout sessions the UI initiated.
type PaymentService interface {
	ConfirmPayment(ctx context.Context, checkoutSessionID string) (*entities.PaymentConfirmation, error)
}

// CalendarService drives the Google Calendar OAuth handshake.
type CalendarService interface {
	CalendarAuthURL(ctx context.Context) (*entities.CalendarAuth, error)
	CalendarExchange(ctx context.Context, code string) (*entities.CalendarAuth, error)
}
