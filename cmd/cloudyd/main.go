// Command cloudyd runs the Cloudy gateway: the REST API, the room signaling
// endpoint, and the in-process AI assistant agent.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cloudy-ai/cloudy/internal/dotenv"
	"github.com/cloudy-ai/cloudy/pkg/gateway/auth"
	"github.com/cloudy-ai/cloudy/pkg/gateway/billing"
	"github.com/cloudy-ai/cloudy/pkg/gateway/config"
	"github.com/cloudy-ai/cloudy/pkg/gateway/handlers"
	"github.com/cloudy-ai/cloudy/pkg/gateway/metrics"
	"github.com/cloudy-ai/cloudy/pkg/gateway/room"
	"github.com/cloudy-ai/cloudy/pkg/gateway/server"
	"github.com/cloudy-ai/cloudy/pkg/gateway/sso"
	"github.com/cloudy-ai/cloudy/pkg/gateway/store"
	cloudy "github.com/cloudy-ai/cloudy/sdk"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cloudyd:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := dotenv.Load(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New("cloudy")

	var brain room.Intelligence
	if cfg.GeminiAPIKey != "" {
		inference, err := cloudy.NewInferenceClient(ctx, cfg.GeminiAPIKey,
			cloudy.WithInferenceModel(cfg.GeminiModel),
			cloudy.WithInferenceLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("create inference client: %w", err)
		}
		brain = &meteredBrain{inference: inference, metrics: m, model: cfg.GeminiModel}
	} else {
		logger.Warn("CLOUDY_GEMINI_API_KEY not set, assistant replies disabled")
	}

	hub := room.NewHub(m)
	agent := room.NewAgent(room.AgentConfig{
		Identity: cfg.AgentIdentity,
		Brain:    brain,
		Store:    st,
		Metrics:  m,
		Logger:   logger,
	})

	deps := &handlers.Deps{
		Logger: logger,
		Store:  st,
		Tokens: auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL, cfg.RoomTokenTTL, nil),
		Hub:    hub,
		Agent:  agent,
		Billing: billing.New(billing.Config{
			APIKey:    cfg.StripeAPIKey,
			PublicURL: cfg.PublicURL,
			PlanPrices: map[string]string{
				"pro": cfg.StripePricePro,
			},
		}),
		SSO: sso.New(sso.Config{
			APIKey:      cfg.WorkOSAPIKey,
			ClientID:    cfg.WorkOSClientID,
			RedirectURI: cfg.WorkOSRedirectURI,
		}),
		Metrics:   m,
		Config:    cfg,
		StartedAt: time.Now(),
	}

	return server.New(deps).Run(ctx)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(os.Getenv("CLOUDY_LOG_LEVEL"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("CLOUDY_DATABASE_URL not set, using in-memory store")
		return store.NewMemory(), nil
	}
	st, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	logger.Info("connected to postgres")
	return st, nil
}

// meteredBrain adapts the SDK inference client to the agent and records one
// metric per call.
type meteredBrain struct {
	inference *cloudy.InferenceClient
	metrics   *metrics.Metrics
	model     string
}

func (b *meteredBrain) ChatReply(ctx context.Context, prompt string) room.Reply {
	return b.record("chat", func() cloudy.InferenceResult {
		return b.inference.ChatResponse(ctx, prompt)
	})
}

func (b *meteredBrain) VoiceReply(ctx context.Context, audio []byte, mimeType string) room.Reply {
	return b.record("voice", func() cloudy.InferenceResult {
		return b.inference.AudioResponse(ctx, audio, mimeType)
	})
}

func (b *meteredBrain) VisionReply(ctx context.Context, prompt string, image []byte, mimeType string) room.Reply {
	return b.record("vision", func() cloudy.InferenceResult {
		return b.inference.VisionResponse(ctx, prompt, image, mimeType)
	})
}

func (b *meteredBrain) record(kind string, call func() cloudy.InferenceResult) room.Reply {
	start := time.Now()
	result := call()
	outcome := "ok"
	if result.Degraded {
		outcome = "degraded"
	}
	b.metrics.RecordInference(b.model, kind, outcome, time.Since(start))
	return room.Reply{Text: result.Text, Degraded: result.Degraded}
}
