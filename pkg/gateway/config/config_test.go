package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("CLOUDY_SECRET_KEY", "test-secret")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("token ttl = %v", cfg.TokenTTL)
	}
	if cfg.RoomTokenTTL != time.Hour {
		t.Errorf("room token ttl = %v", cfg.RoomTokenTTL)
	}
	if cfg.AgentIdentity != "cloudy-agent" {
		t.Errorf("agent identity = %q", cfg.AgentIdentity)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("gemini model = %q", cfg.GeminiModel)
	}
	if cfg.RoomMaxMessageBytes != 4<<20 {
		t.Errorf("max message bytes = %d", cfg.RoomMaxMessageBytes)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("cors origins = %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("CLOUDY_SECRET_KEY", "test-secret")
	t.Setenv("CLOUDY_ADDR", ":9999")
	t.Setenv("CLOUDY_TOKEN_TTL", "5m")
	t.Setenv("CLOUDY_ROOM_MAX_MESSAGE_BYTES", "1024")
	t.Setenv("CLOUDY_CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.TokenTTL != 5*time.Minute {
		t.Errorf("token ttl = %v", cfg.TokenTTL)
	}
	if cfg.RoomMaxMessageBytes != 1024 {
		t.Errorf("max message bytes = %d", cfg.RoomMaxMessageBytes)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://app.example.com"]; !ok {
		t.Error("missing first cors origin")
	}
	if _, ok := cfg.CORSAllowedOrigins["https://admin.example.com"]; !ok {
		t.Error("missing second cors origin")
	}
}

func TestLoadFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("CLOUDY_SECRET_KEY", "")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("missing secret should fail")
	}
}

func TestLoadFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CLOUDY_SECRET_KEY", "test-secret")
	t.Setenv("CLOUDY_TOKEN_TTL", "not-a-duration")
	t.Setenv("CLOUDY_ROOM_MAX_MESSAGE_BYTES", "not-a-number")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Errorf("token ttl = %v, want default", cfg.TokenTTL)
	}
	if cfg.RoomMaxMessageBytes != 4<<20 {
		t.Errorf("max message bytes = %d, want default", cfg.RoomMaxMessageBytes)
	}
}
