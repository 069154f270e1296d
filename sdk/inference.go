package cloudy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// DefaultInferenceModel is the Gemini model used when none is configured.
const DefaultInferenceModel = "gemini-2.0-flash"

// FallbackResponseText is returned in degraded results when the upstream
// model call fails.
const FallbackResponseText = "I'm sorry, I ran into a problem answering that. Please try again in a moment."

const voiceSystemInstruction = "You are Cloudy, a helpful AWS expert AI assistant. " +
	"You are having a voice conversation with a user while watching their screen. " +
	"Provide clear, accurate, and concise verbal guidance on AWS services. " +
	"Keep responses natural and conversational, suitable for voice interaction. " +
	"Do not include markdown or code formatting in your response."

const chatSystemInstruction = "You are Cloudy, a helpful AWS expert AI assistant answering in a written chat. " +
	"Provide clear, accurate guidance on AWS services. " +
	"Use markdown formatting and fenced code blocks where they help, and keep answers focused."

// InferenceResult is the outcome of one inference call. A degraded result
// carries the canned fallback text plus the error that caused it, so callers
// can still render something while choosing whether to surface or retry.
type InferenceResult struct {
	Text     string
	Degraded bool
	Err      error
}

// InferenceClient issues single request/response calls to Gemini for text and
// vision prompts. Stateless per call.
type InferenceClient struct {
	model    string
	logger   *slog.Logger
	generate generateFunc
}

type generateFunc func(ctx context.Context, system string, parts []*genai.Part) (string, error)

// InferenceOption customizes an InferenceClient.
type InferenceOption func(*InferenceClient)

// WithInferenceModel overrides the model id.
func WithInferenceModel(model string) InferenceOption {
	return func(c *InferenceClient) { c.model = model }
}

// WithInferenceLogger sets the logger.
func WithInferenceLogger(logger *slog.Logger) InferenceOption {
	return func(c *InferenceClient) { c.logger = logger }
}

// NewInferenceClient creates a Gemini-backed inference client.
func NewInferenceClient(ctx context.Context, apiKey string, opts ...InferenceOption) (*InferenceClient, error) {
	c := &InferenceClient{
		model:  DefaultInferenceModel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	c.generate = func(ctx context.Context, system string, parts []*genai.Part) (string, error) {
		config := &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
		contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
		resp, err := client.Models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", fmt.Errorf("model returned an empty response")
		}
		return text, nil
	}
	return c, nil
}

// VoiceResponse answers a spoken prompt with the voice persona.
func (c *InferenceClient) VoiceResponse(ctx context.Context, prompt string) InferenceResult {
	return c.respond(ctx, voiceSystemInstruction, []*genai.Part{genai.NewPartFromText(prompt)})
}

// ChatResponse answers a typed prompt with the written-chat persona.
func (c *InferenceClient) ChatResponse(ctx context.Context, prompt string) InferenceResult {
	return c.respond(ctx, chatSystemInstruction, []*genai.Part{genai.NewPartFromText(prompt)})
}

// AudioResponse answers a spoken prompt delivered as encoded audio.
func (c *InferenceClient) AudioResponse(ctx context.Context, audio []byte, mimeType string) InferenceResult {
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	parts := []*genai.Part{
		genai.NewPartFromText("Listen to this spoken question and answer it."),
		genai.NewPartFromBytes(audio, mimeType),
	}
	return c.respond(ctx, voiceSystemInstruction, parts)
}

// VisionResponse answers a prompt about a captured screen frame.
func (c *InferenceClient) VisionResponse(ctx context.Context, prompt string, image []byte, mimeType string) InferenceResult {
	if mimeType == "" {
		mimeType = "image/png"
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = "Look at this screen capture and provide helpful, step-by-step guidance based on what you see. Be specific and actionable."
	}
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	return c.respond(ctx, voiceSystemInstruction, parts)
}

func (c *InferenceClient) respond(ctx context.Context, system string, parts []*genai.Part) InferenceResult {
	text, err := c.generate(ctx, system, parts)
	if err != nil {
		c.logger.Error("inference call failed", "model", c.model, "error", err)
		return InferenceResult{Text: FallbackResponseText, Degraded: true, Err: err}
	}
	return InferenceResult{Text: text}
}
