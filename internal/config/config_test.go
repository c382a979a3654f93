package config

import "testing"

func TestLoad(t *testing.T) {
	t.Setenv("STUDYHALL_API_URL", "https://api.studyhall.app/")
	t.Setenv("STUDYHALL_VOICE_WS_URL", "wss://api.studyhall.app/ws/voice")
	t.Setenv("PORT", "8099")
	t.Setenv("VOXLEY_VOICE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.APIBaseURL != "https://api.studyhall.app" {
		t.Errorf("base URL = %q, trailing slash should be trimmed", cfg.APIBaseURL)
	}
	if cfg.Addr != ":8099" {
		t.Errorf("addr = %q, want :8099", cfg.Addr)
	}
	if cfg.Voice != "tutor" {
		t.Errorf("voice = %q, want default tutor", cfg.Voice)
	}
}

func TestLoadRequiresBackendURLs(t *testing.T) {
	t.Setenv("STUDYHALL_API_URL", "")
	t.Setenv("STUDYHALL_VOICE_WS_URL", "wss://api.studyhall.app/ws/voice")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without STUDYHALL_API_URL")
	}

	t.Setenv("STUDYHALL_API_URL", "https://api.studyhall.app")
	t.Setenv("STUDYHALL_VOICE_WS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without STUDYHALL_VOICE_WS_URL")
	}
}

func TestLoadDefaultPort(t *testing.T) {
	t.Setenv("STUDYHALL_API_URL", "https://api.studyhall.app")
	t.Setenv("STUDYHALL_VOICE_WS_URL", "wss://api.studyhall.app/ws/voice")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Addr != ":7810" {
		t.Errorf("addr = %q, want :7810", cfg.Addr)
	}
}
