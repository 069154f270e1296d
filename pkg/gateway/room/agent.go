package room

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudy-ai/cloudy/pkg/gateway/metrics"
	"github.com/cloudy-ai/cloudy/pkg/gateway/protocol"
	"github.com/cloudy-ai/cloudy/pkg/gateway/store"
)

// GreetingText is spoken by the agent when a session starts.
const GreetingText = "Hi there! I'm Cloudy, your AWS expert assistant. Ask me anything about AWS, or share your screen and I'll walk you through it."

const inferenceTimeout = 45 * time.Second

// Reply is one answer from the assistant. Degraded replies carry fallback
// text produced after an upstream model failure.
type Reply struct {
	Text     string
	Degraded bool
}

// Intelligence produces assistant replies. Implementations wrap the model
// backend; the agent only sees text in, text out.
type Intelligence interface {
	ChatReply(ctx context.Context, prompt string) Reply
	VoiceReply(ctx context.Context, audio []byte, mimeType string) Reply
	VisionReply(ctx context.Context, prompt string, image []byte, mimeType string) Reply
}

// AgentConfig configures the AI participant.
type AgentConfig struct {
	Identity string // defaults to "cloudy-agent"
	Name     string // defaults to "Cloudy"
	Brain    Intelligence
	Store    store.Store
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Agent joins rooms as the AI assistant participant. One Agent serves many
// rooms; each joined room gets its own serial worker so replies within a room
// stay ordered.
type Agent struct {
	identity string
	name     string
	brain    Intelligence
	store    store.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAgent creates the assistant participant.
func NewAgent(cfg AgentConfig) *Agent {
	a := &Agent{
		identity: cfg.Identity,
		name:     cfg.Name,
		brain:    cfg.Brain,
		store:    cfg.Store,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if a.identity == "" {
		a.identity = "cloudy-agent"
	}
	if a.name == "" {
		a.name = "Cloudy"
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Identity returns the agent's participant identity.
func (a *Agent) Identity() string { return a.identity }

// EnsureJoined joins the agent to the room if it is not already present.
func (a *Agent) EnsureJoined(r *Room) {
	if r.Has(a.identity) {
		return
	}
	w := &agentWorker{
		agent: a,
		room:  r,
		inbox: make(chan agentEvent, 64),
	}
	go w.loop()
	r.Join(a.identity, a.name, w)
}

type agentEvent struct {
	from    string
	payload json.RawMessage
	left    bool
}

// agentWorker is the agent's presence in one room. Its Send implements the
// room Sender contract; frames the agent does not act on are discarded.
type agentWorker struct {
	agent *Agent
	room  *Room
	inbox chan agentEvent

	sessionID      string
	sessionStarted time.Time
}

func (w *agentWorker) Send(v any) error {
	switch frame := v.(type) {
	case protocol.ServerData:
		w.enqueue(agentEvent{from: frame.From, payload: frame.Payload})
	case protocol.ServerParticipantLeft:
		w.enqueue(agentEvent{left: true})
	}
	return nil
}

func (w *agentWorker) enqueue(ev agentEvent) {
	select {
	case w.inbox <- ev:
	default:
		w.agent.logger.Warn("agent inbox full, dropping event", "room", w.room.Name())
	}
}

func (w *agentWorker) loop() {
	for ev := range w.inbox {
		if ev.left {
			if w.humansGone() {
				w.finishSession("abandoned")
				w.room.LeaveSender(w.agent.identity, w)
				return
			}
			continue
		}
		w.handleData(ev.from, ev.payload)
	}
}

func (w *agentWorker) humansGone() bool {
	for _, p := range w.room.Participants() {
		if p.Identity != w.agent.identity {
			return false
		}
	}
	return true
}

func (w *agentWorker) handleData(from string, payload json.RawMessage) {
	msgType, ok := protocol.PayloadType(payload)
	if !ok {
		w.agent.logger.Warn("agent received malformed payload", "room", w.room.Name(), "from", from)
		return
	}

	switch msgType {
	case protocol.DataTypeStartSession:
		var start protocol.StartSession
		if err := json.Unmarshal(payload, &start); err != nil {
			w.agent.logger.Warn("bad start_session payload", "room", w.room.Name(), "error", err)
			return
		}
		w.startSession(start)

	case protocol.DataTypeEndSession:
		w.finishSession("ended")

	case protocol.DataTypeTextInput:
		var input protocol.TextInput
		if err := json.Unmarshal(payload, &input); err != nil || strings.TrimSpace(input.Text) == "" {
			return
		}
		w.persist("user", input.Text, nil)
		w.reply(func(ctx context.Context) Reply {
			return w.agent.brain.ChatReply(ctx, input.Text)
		})

	case protocol.DataTypeAudioInput:
		var input protocol.AudioInput
		if err := json.Unmarshal(payload, &input); err != nil || len(input.Data) == 0 {
			return
		}
		w.persist("user", "", input.Data)
		w.reply(func(ctx context.Context) Reply {
			return w.agent.brain.VoiceReply(ctx, input.Data, audioMIMEType(input.Format))
		})

	case protocol.DataTypeScreenShareFrame:
		var frame protocol.ScreenShareFrame
		if err := json.Unmarshal(payload, &frame); err != nil || len(frame.Data) == 0 {
			return
		}
		w.reply(func(ctx context.Context) Reply {
			return w.agent.brain.VisionReply(ctx, frame.Prompt, frame.Data, imageMIMEType(frame.Format))
		})
	}
}

func (w *agentWorker) startSession(start protocol.StartSession) {
	w.sessionID = start.SessionID
	w.sessionStarted = time.Now()

	if w.agent.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := w.agent.store.CreateSession(ctx, &store.Session{
			ID:       start.SessionID,
			UserID:   start.UserID,
			RoomName: w.room.Name(),
			Config: store.SessionConfig{
				VoiceEnabled:       start.Config.VoiceEnabled,
				ScreenShareEnabled: start.Config.ScreenShareEnabled,
				Language:           start.Config.Language,
				VoiceModel:         start.Config.VoiceModel,
			},
		})
		if err != nil && !errors.Is(err, store.ErrConflict) {
			w.agent.logger.Error("create session", "session_id", start.SessionID, "error", err)
		}
	}

	w.publish(GreetingText)
	w.persist("assistant", GreetingText, nil)
}

func (w *agentWorker) finishSession(status string) {
	if w.sessionID == "" {
		return
	}
	if w.agent.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.agent.store.EndSession(ctx, w.sessionID, time.Now()); err != nil {
			w.agent.logger.Error("end session", "session_id", w.sessionID, "error", err)
		}
	}
	if w.agent.metrics != nil {
		w.agent.metrics.RecordSessionEnd(status, time.Since(w.sessionStarted))
	}
	w.sessionID = ""
}

func (w *agentWorker) reply(call func(ctx context.Context) Reply) {
	if w.agent.brain == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), inferenceTimeout)
	defer cancel()

	r := call(ctx)
	if r.Degraded {
		w.agent.logger.Warn("degraded assistant reply", "room", w.room.Name(), "session_id", w.sessionID)
	}
	w.publish(r.Text)
	w.persist("assistant", r.Text, nil)
}

func (w *agentWorker) publish(text string) {
	payload, err := json.Marshal(protocol.DataEnvelope{
		Type:      protocol.DataTypeAIResponse,
		Text:      text,
		SessionID: w.sessionID,
	})
	if err != nil {
		return
	}
	w.room.Data(w.agent.identity, payload)
}

func (w *agentWorker) persist(role, text string, audio []byte) {
	if w.agent.store == nil || w.sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.agent.store.AppendMessage(ctx, &store.Message{
		SessionID: w.sessionID,
		Role:      role,
		Text:      text,
		AudioData: audio,
	})
	if err != nil {
		w.agent.logger.Error("append message", "session_id", w.sessionID, "role", role, "error", err)
	}
}

func imageMIMEType(format string) string {
	switch strings.ToLower(format) {
	case "png", "":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "image/" + strings.ToLower(format)
	}
}

func audioMIMEType(format string) string {
	switch strings.ToLower(format) {
	case "wav", "":
		return "audio/wav"
	case "ogg", "opus":
		return "audio/ogg"
	case "mp3":
		return "audio/mpeg"
	case "pcm16":
		return "audio/l16"
	default:
		return "audio/" + strings.ToLower(format)
	}
}
