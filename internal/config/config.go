package config

import (
	"fmt"
	"os"
	"strings"
)

// Config aggregates everything the client reads from the environment.
// godotenv is loaded in main before this runs.
type Config struct {
	// Addr is the local control API listen address.
	Addr string

	// APIBaseURL is the platform REST API base, e.g. https://api.studyhall.app.
	APIBaseURL string

	// VoiceWSURL is the voice WebSocket endpoint, e.g. wss://api.studyhall.app/ws/voice.
	VoiceWSURL string

	// AuthToken is an optional pre-provisioned bearer token. When empty the
	// UI shell is expected to log in through the local API first.
	AuthToken string

	// CaptureDevice optionally names the microphone to use (default device
	// when empty).
	CaptureDevice string

	// Voice is the default synthesis voice tag.
	Voice string

	// SystemPrompt is the default system prompt for voice sessions.
	SystemPrompt string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:          listenAddr(),
		APIBaseURL:    strings.TrimRight(os.Getenv("STUDYHALL_API_URL"), "/"),
		VoiceWSURL:    os.Getenv("STUDYHALL_VOICE_WS_URL"),
		AuthToken:     os.Getenv("STUDYHALL_TOKEN"),
		CaptureDevice: os.Getenv("VOXLEY_CAPTURE_DEVICE"),
		Voice:         os.Getenv("VOXLEY_VOICE"),
		SystemPrompt:  os.Getenv("VOXLEY_SYSTEM_PROMPT"),
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("STUDYHALL_API_URL is required")
	}
	if cfg.VoiceWSURL == "" {
		return nil, fmt.Errorf("STUDYHALL_VOICE_WS_URL is required")
	}
	if cfg.Voice == "" {
		cfg.Voice = "tutor"
	}

	return cfg, nil
}

func listenAddr() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "7810"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}
