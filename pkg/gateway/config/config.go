// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full gateway configuration.
type Config struct {
	Addr    string
	Version string

	// SecretKey signs API and room access tokens (HS256).
	SecretKey    string
	TokenTTL     time.Duration
	RoomTokenTTL time.Duration

	// PublicURL is the externally reachable gateway base URL, used in room
	// grants handed to clients.
	PublicURL string

	// Gemini inference.
	GeminiAPIKey string
	GeminiModel  string

	// Postgres. Empty means the in-memory store.
	DatabaseURL string

	// Stripe billing. Empty disables the checkout endpoint.
	StripeAPIKey   string
	StripePricePro string

	// WorkOS hosted login. Empty disables the SSO endpoints.
	WorkOSAPIKey      string
	WorkOSClientID    string
	WorkOSRedirectURI string

	// Room/WebSocket limits.
	AgentIdentity        string
	RoomMaxMessageBytes  int64
	RoomHandshakeTimeout time.Duration
	RoomWriteTimeout     time.Duration

	// CORS. Empty means disabled.
	CORSAllowedOrigins map[string]struct{}

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

// LoadFromEnv builds a Config from CLOUDY_* environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("CLOUDY_ADDR", ":8080"),
		Version:              envOr("CLOUDY_VERSION", "dev"),
		SecretKey:            os.Getenv("CLOUDY_SECRET_KEY"),
		TokenTTL:             envDurationOr("CLOUDY_TOKEN_TTL", 30*time.Minute),
		RoomTokenTTL:         envDurationOr("CLOUDY_ROOM_TOKEN_TTL", time.Hour),
		PublicURL:            envOr("CLOUDY_PUBLIC_URL", "http://localhost:8080"),
		GeminiAPIKey:         os.Getenv("CLOUDY_GEMINI_API_KEY"),
		GeminiModel:          envOr("CLOUDY_GEMINI_MODEL", "gemini-2.0-flash"),
		DatabaseURL:          os.Getenv("CLOUDY_DATABASE_URL"),
		StripeAPIKey:         os.Getenv("CLOUDY_STRIPE_API_KEY"),
		StripePricePro:       os.Getenv("CLOUDY_STRIPE_PRICE_PRO"),
		WorkOSAPIKey:         os.Getenv("CLOUDY_WORKOS_API_KEY"),
		WorkOSClientID:       os.Getenv("CLOUDY_WORKOS_CLIENT_ID"),
		WorkOSRedirectURI:    os.Getenv("CLOUDY_WORKOS_REDIRECT_URI"),
		AgentIdentity:        envOr("CLOUDY_AGENT_IDENTITY", "cloudy-agent"),
		RoomMaxMessageBytes:  envInt64Or("CLOUDY_ROOM_MAX_MESSAGE_BYTES", 4<<20), // 4 MiB: screen frames ride the data channel
		RoomHandshakeTimeout: envDurationOr("CLOUDY_ROOM_HANDSHAKE_TIMEOUT", 5*time.Second),
		RoomWriteTimeout:     envDurationOr("CLOUDY_ROOM_WRITE_TIMEOUT", 5*time.Second),
		CORSAllowedOrigins:   make(map[string]struct{}),
		ReadHeaderTimeout:    envDurationOr("CLOUDY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("CLOUDY_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:  envDurationOr("CLOUDY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range strings.Split(os.Getenv("CLOUDY_CORS_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if strings.TrimSpace(cfg.SecretKey) == "" {
		return Config{}, fmt.Errorf("CLOUDY_SECRET_KEY is required")
	}
	if cfg.TokenTTL <= 0 || cfg.RoomTokenTTL <= 0 {
		return Config{}, fmt.Errorf("token TTLs must be positive")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt64Or(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
