package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims mirrors the platform's access-token payload. The token is issued
// and verified by the backend; the client only reads it.
type Claims struct {
	UserID string `json:"user_id"`
	Plan   string `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

var (
	// ErrNoToken is returned when an operation needs a token and none is set.
	ErrNoToken = errors.New("no auth token available")
	// ErrTokenExpired is returned when the stored token's expiry has passed.
	ErrTokenExpired = errors.New("auth token expired")
)

// TokenStore holds the current bearer token for the process. The voice
// controller and the REST client both read from it; the login handler
// writes to it.
type TokenStore struct {
	mu     sync.RWMutex
	token  string
	claims *Claims
}

// NewTokenStore creates a store, optionally seeded with a token from the
// environment. A malformed seed token is rejected.
func NewTokenStore(seed string) (*TokenStore, error) {
	s := &TokenStore{}
	if seed != "" {
		if err := s.Set(seed); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Set replaces the stored token after extracting its claims. Signature
// verification is the backend's job; the client only needs the payload,
// so the token is parsed unverified.
func (s *TokenStore) Set(token string) error {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.claims = claims
	return nil
}

// Token returns the current bearer token, failing if none is set or the
// token has expired.
func (s *TokenStore) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" {
		return "", ErrNoToken
	}
	if s.claims.ExpiresAt != nil && time.Now().After(s.claims.ExpiresAt.Time) {
		return "", ErrTokenExpired
	}
	return s.token, nil
}

// UserID returns the user id from the stored token's claims.
func (s *TokenStore) UserID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.claims == nil {
		return "", ErrNoToken
	}
	return s.claims.UserID, nil
}

// Clear drops the stored token, e.g. on logout.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.claims = nil
}
