package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/studyhall/voxley/domain/repositories"
	"github.com/studyhall/voxley/internal/auth"
)

func signedToken(t *testing.T, userID string, ttl time.Duration) string {
	t.Helper()
	claims := auth.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *auth.TokenStore, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens, err := auth.NewTokenStore("")
	if err != nil {
		t.Fatalf("failed to create token store: %v", err)
	}
	client, err := New(Config{BaseURL: server.URL}, tokens, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client, tokens, server
}

func TestNewRequiresBaseURL(t *testing.T) {
	tokens, err := auth.NewTokenStore("")
	if err != nil {
		t.Fatalf("failed to create token store: %v", err)
	}
	if _, err := New(Config{}, tokens, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing base URL")
	}
}

func TestLoginStoresToken(t *testing.T) {
	token := signedToken(t, "user-42", time.Hour)

	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("login should not carry an Authorization header")
		}
		var creds repositories.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("failed to decode credentials: %v", err)
		}
		if creds.Email != "learner@studyhall.app" {
			t.Errorf("unexpected email %q", creds.Email)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token": token,
			"user":  map[string]string{"id": "user-42", "email": creds.Email, "name": "Learner"},
		})
	}))

	session, err := client.Login(context.Background(), repositories.Credentials{
		Email:    "learner@studyhall.app",
		Password: "hunter2",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if session.User.ID != "user-42" {
		t.Errorf("expected user-42, got %q", session.User.ID)
	}

	stored, err := tokens.Token()
	if err != nil {
		t.Fatalf("expected stored token, got error: %v", err)
	}
	if stored != token {
		t.Error("stored token does not match login response")
	}
	userID, err := tokens.UserID()
	if err != nil {
		t.Fatalf("expected user ID from token: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("expected user-42 from claims, got %q", userID)
	}
}

func TestAuthedCallsSendBearerToken(t *testing.T) {
	token := signedToken(t, "user-7", time.Hour)

	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+token {
			t.Errorf("unexpected Authorization header %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"reply":   map[string]string{"role": "assistant", "content": "Photosynthesis converts light to sugar."},
		})
	}))
	if err := tokens.Set(token); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	reply, err := client.SendChat(context.Background(), nil, "Explain photosynthesis")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if reply.Role != "assistant" {
		t.Errorf("expected assistant reply, got role %q", reply.Role)
	}
}

func TestAuthedCallWithoutTokenFails(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server without a token")
	}))

	if _, err := client.GetDashboard(context.Background()); err != auth.ErrNoToken {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestErrorResponseDecodesAPIError(t *testing.T) {
	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]string{
			"error":   "plan_limit_reached",
			"message": "upgrade to continue generating quizzes",
		})
	}))
	if err := tokens.Set(signedToken(t, "user-1", time.Hour)); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	_, err := client.GenerateQuiz(context.Background(), "algebra", 5)
	if err == nil {
		t.Fatal("expected error for 402 response")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusPaymentRequired {
		t.Errorf("expected status 402, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != "plan_limit_reached" {
		t.Errorf("unexpected error code %q", apiErr.Code)
	}
}

func TestTranscribeUploadsMultipart(t *testing.T) {
	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transcription" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("expected multipart upload, got %q", r.Header.Get("Content-Type"))
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Fatalf("missing audio part: %v", err)
		}
		defer file.Close()
		if header.Filename != "lecture.wav" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "RIFF-fake-audio" {
			t.Errorf("unexpected upload body %q", data)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result":  map[string]interface{}{"text": "today we cover limits", "duration_ms": 4200},
		})
	}))
	if err := tokens.Set(signedToken(t, "user-1", time.Hour)); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	result, err := client.Transcribe(context.Background(), "lecture.wav", strings.NewReader("RIFF-fake-audio"))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if result.Text != "today we cover limits" {
		t.Errorf("unexpected transcription %q", result.Text)
	}
	if result.DurationMs != 4200 {
		t.Errorf("unexpected duration %d", result.DurationMs)
	}
}

func TestSubmitQuizHitsQuizPath(t *testing.T) {
	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/quiz/quiz-9/submit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"result":  map[string]interface{}{"score": 0.8, "total": 5, "correct": 4},
		})
	}))
	if err := tokens.Set(signedToken(t, "user-1", time.Hour)); err != nil {
		t.Fatalf("failed to seed token: %v", err)
	}

	result, err := client.SubmitQuiz(context.Background(), "quiz-9", map[string]string{"q1": "b"})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Correct != 4 {
		t.Errorf("expected 4 correct, got %d", result.Correct)
	}
}
