package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/studyhall/voxley/domain/entities"
	"github.com/studyhall/voxley/domain/repositories"
	"github.com/studyhall/voxley/internal/auth"
)

const (
	defaultTimeout           = 30 * time.Second
	defaultTranscribeTimeout = 2 * time.Minute
)

// Config holds configuration for the platform API client.
// Required fields:
// - BaseURL: the API root, e.g. https://api.studyhall.app
// Optional fields with defaults:
// - Timeout: per-request timeout (default: 30s)
// - TranscribeTimeout: timeout for transcription uploads (default: 2m)
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	TranscribeTimeout time.Duration
}

// Client is the typed HTTP client for the Studyhall REST API. Every call
// attaches the current bearer token; failures come back as *APIError.
type Client struct {
	baseURL           string
	httpClient        *http.Client
	transcribeTimeout time.Duration
	tokens            *auth.TokenStore
	logger            *zap.Logger
}

// Ensure Client implements every backend service interface.
var (
	_ repositories.AuthService          = (*Client)(nil)
	_ repositories.TutorService         = (*Client)(nil)
	_ repositories.StudyService         = (*Client)(nil)
	_ repositories.TranscriptionService = (*Client)(nil)
	_ repositories.DashboardService     = (*Client)(nil)
	_ repositories.PaymentService       = (*Client)(nil)
	_ repositories.CalendarService      = (*Client)(nil)
)

// APIError is a non-2xx response decoded from the backend's error body.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d (%s)", e.StatusCode, e.Code)
}

// New creates a platform API client.
func New(config Config, tokens *auth.TokenStore, logger *zap.Logger) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	transcribeTimeout := config.TranscribeTimeout
	if transcribeTimeout == 0 {
		transcribeTimeout = defaultTranscribeTimeout
	}

	return &Client{
		baseURL:           config.BaseURL,
		httpClient:        &http.Client{Timeout: timeout},
		transcribeTimeout: transcribeTimeout,
		tokens:            tokens,
		logger:            logger,
	}, nil
}

// do issues one JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}, authed bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token, err := c.tokens.Token()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	return c.decode(resp, path, out)
}

func (c *Client) decode(resp *http.Response, path string, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: "unknown_error"}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = string(data)
		}
		c.logger.Warn("Backend call failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code))
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// Login authenticates and stores the returned token for later calls.
func (c *Client) Login(ctx context.Context, creds repositories.Credentials) (*repositories.AuthSession, error) {
	var session repositories.AuthSession
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", creds, &session, false); err != nil {
		return nil, err
	}
	if err := c.tokens.Set(session.Token); err != nil {
		return nil, fmt.Errorf("login returned an unusable token: %w", err)
	}
	return &session, nil
}

// Register creates an account and stores the returned token.
func (c *Client) Register(ctx context.Context, name string, creds repositories.Credentials) (*repositories.AuthSession, error) {
	payload := struct {
		Name string `json:"name"`
		repositories.Credentials
	}{Name: name, Credentials: creds}

	var session repositories.AuthSession
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", payload, &session, false); err != nil {
		return nil, err
	}
	if err := c.tokens.Set(session.Token); err != nil {
		return nil, fmt.Errorf("register returned an unusable token: %w", err)
	}
	return &session, nil
}

// SendChat sends one tutor chat message with history and returns the reply.
func (c *Client) SendChat(ctx context.Context, history []entities.ChatMessage, message string) (*entities.ChatMessage, error) {
	payload := struct {
		History []entities.ChatMessage `json:"history,omitempty"`
		Message string                 `json:"message"`
	}{History: history, Message: message}

	var resp struct {
		Success bool                 `json:"success"`
		Reply   entities.ChatMessage `json:"reply"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/chat", payload, &resp, true); err != nil {
		return nil, err
	}
	return &resp.Reply, nil
}

// GenerateFlashcards asks the backend for study cards on a topic.
func (c *Client) GenerateFlashcards(ctx context.Context, topic string, count int) ([]entities.Flashcard, error) {
	payload := struct {
		Topic string `json:"topic"`
		Count int    `json:"count,omitempty"`
	}{Topic: topic, Count: count}

	var resp struct {
		Success bool                 `json:"success"`
		Cards   []entities.Flashcard `json:"cards"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/flashcards/generate", payload, &resp, true); err != nil {
		return nil, err
	}
	return resp.Cards, nil
}

// GenerateQuiz asks the backend for quiz questions on a topic.
func (c *Client) GenerateQuiz(ctx context.Context, topic string, count int) ([]entities.QuizQuestion, error) {
	payload := struct {
		Topic string `json:"topic"`
		Count int    `json:"count,omitempty"`
	}{Topic: topic, Count: count}

	var resp struct {
		Success   bool                    `json:"success"`
		QuizID    string                  `json:"quiz_id"`
		Questions []entities.QuizQuestion `json:"questions"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/quiz/generate", payload, &resp, true); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// SubmitQuiz sends answers for grading.
func (c *Client) SubmitQuiz(ctx context.Context, quizID string, answers map[string]string) (*entities.QuizResult, error) {
	payload := struct {
		Answers map[string]string `json:"answers"`
	}{Answers: answers}

	var resp struct {
		Success bool                `json:"success"`
		Result  entities.QuizResult `json:"result"`
	}
	path := fmt.Sprintf("/api/v1/quiz/%s/submit", quizID)
	if err := c.do(ctx, http.MethodPost, path, payload, &resp, true); err != nil {
		return nil, err
	}
	return &resp.Result, nil
}

// Transcribe uploads an audio file for offline transcription.
func (c *Client) Transcribe(ctx context.Context, filename string, audio io.Reader) (*entities.TranscriptionResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("failed to buffer audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.transcribeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transcription", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	token, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription upload failed: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success bool                         `json:"success"`
		Result  entities.TranscriptionResult `json:"result"`
	}
	if err := c.decode(resp, "/api/v1/transcription", &out); err != nil {
		return nil, err
	}
	return &out.Result, nil
}

// GetDashboard fetches the learner's progress summary.
func (c *Client) GetDashboard(ctx context.Context) (*entities.DashboardSummary, error) {
	var resp struct {
		Success bool                      `json:"success"`
		Summary entities.DashboardSummary `json:"summary"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/dashboard", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp.Summary, nil
}

// ConfirmPayment confirms a checkout session the UI initiated.
func (c *Client) ConfirmPayment(ctx context.Context, checkoutSessionID string) (*entities.PaymentConfirmation, error) {
	payload := struct {
		CheckoutSessionID string `json:"checkout_session_id"`
	}{CheckoutSessionID: checkoutSessionID}

	var resp struct {
		Success      bool                         `json:"success"`
		Confirmation entities.PaymentConfirmation `json:"confirmation"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments/confirm", payload, &resp, true); err != nil {
		return nil, err
	}
	return &resp.Confirmation, nil
}

// CalendarAuthURL fetches the Google Calendar OAuth consent URL.
func (c *Client) CalendarAuthURL(ctx context.Context) (*entities.CalendarAuth, error) {
	var resp struct {
		Success bool                  `json:"success"`
		Auth    entities.CalendarAuth `json:"auth"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/calendar/oauth/url", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp.Auth, nil
}

// CalendarExchange completes the OAuth handshake with the returned code.
func (c *Client) CalendarExchange(ctx context.Context, code string) (*entities.CalendarAuth, error) {
	payload := struct {
		Code string `json:"code"`
	}{Code: code}

	var resp struct {
		Success bool                  `json:"success"`
		Auth    entities.CalendarAuth `json:"auth"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/calendar/oauth/exchange", payload, &resp, true); err != nil {
		return nil, err
	}
	return &resp.Auth, nil
}
