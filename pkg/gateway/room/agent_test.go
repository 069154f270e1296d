package room

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cloudy-ai/cloudy/pkg/gateway/protocol"
	"github.com/cloudy-ai/cloudy/pkg/gateway/store"
)

type echoBrain struct{}

func (echoBrain) ChatReply(_ context.Context, prompt string) Reply {
	return Reply{Text: "echo: " + prompt}
}

func (echoBrain) VoiceReply(_ context.Context, _ []byte, _ string) Reply {
	return Reply{Text: "heard you"}
}

func (echoBrain) VisionReply(_ context.Context, _ string, _ []byte, _ string) Reply {
	return Reply{Text: "I see a console"}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAgentRoom(t *testing.T, st store.Store) (*Room, *chanSender) {
	t.Helper()
	hub := NewHub(nil)
	rm := hub.Room("demo")
	agent := NewAgent(AgentConfig{
		Brain:  echoBrain{},
		Store:  st,
		Logger: discardLogger(),
	})
	agent.EnsureJoined(rm)
	if !rm.Has("cloudy-agent") {
		t.Fatal("agent should join with the default identity")
	}

	// Joining twice must not duplicate the participant.
	agent.EnsureJoined(rm)
	if got := len(rm.Participants()); got != 1 {
		t.Fatalf("participants = %d, want 1", got)
	}

	user := newChanSender()
	rm.Join("user-1", "Demo", user)
	return rm, user
}

func nextAIResponse(t *testing.T, user *chanSender) protocol.DataEnvelope {
	t.Helper()
	deadline := time.After(testWait)
	for {
		select {
		case frame := <-user.frames:
			data, ok := frame.(protocol.ServerData)
			if !ok {
				continue
			}
			var envelope protocol.DataEnvelope
			if err := json.Unmarshal(data.Payload, &envelope); err != nil {
				t.Fatalf("bad data payload: %v", err)
			}
			if envelope.Type != protocol.DataTypeAIResponse {
				t.Fatalf("payload type = %q, want ai_response", envelope.Type)
			}
			if data.From != "cloudy-agent" {
				t.Fatalf("from = %q, want cloudy-agent", data.From)
			}
			return envelope
		case <-deadline:
			t.Fatal("timed out waiting for ai_response")
		}
	}
}

func waitForMessages(t *testing.T, st store.Store, sessionID string, want int) []*store.Message {
	t.Helper()
	deadline := time.Now().Add(testWait)
	for {
		msgs, err := st.MessagesBySession(context.Background(), sessionID)
		if err == nil && len(msgs) >= want {
			return msgs
		}
		if time.Now().After(deadline) {
			t.Fatalf("store has %d messages, want %d (err=%v)", len(msgs), want, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAgentGreetsOnSessionStart(t *testing.T) {
	st := store.NewMemory()
	if err := st.CreateUser(context.Background(), &store.User{ID: "user-1", Username: "demo", Email: "d@e.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	rm, user := newAgentRoom(t, st)

	start, _ := json.Marshal(protocol.StartSession{
		Type:      protocol.DataTypeStartSession,
		SessionID: "sess-1",
		UserID:    "user-1",
		Config:    protocol.SessionConfig{VoiceEnabled: true},
	})
	rm.Data("user-1", start)

	greeting := nextAIResponse(t, user)
	if greeting.Text != GreetingText {
		t.Fatalf("greeting = %q", greeting.Text)
	}
	if greeting.SessionID != "sess-1" {
		t.Fatalf("session id = %q", greeting.SessionID)
	}

	session, err := st.SessionByID(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("session row: %v", err)
	}
	if session.UserID != "user-1" || !session.Config.VoiceEnabled {
		t.Fatalf("session = %+v", session)
	}

	msgs := waitForMessages(t, st, "sess-1", 1)
	if msgs[0].Role != "assistant" || msgs[0].Text != GreetingText {
		t.Fatalf("first message = %+v", msgs[0])
	}
}

func TestAgentAnswersTextInput(t *testing.T) {
	st := store.NewMemory()
	rm, user := newAgentRoom(t, st)

	start, _ := json.Marshal(protocol.StartSession{Type: protocol.DataTypeStartSession, SessionID: "sess-2", UserID: "user-1"})
	rm.Data("user-1", start)
	nextAIResponse(t, user) // greeting

	input, _ := json.Marshal(protocol.TextInput{Type: protocol.DataTypeTextInput, SessionID: "sess-2", Text: "what is S3?"})
	rm.Data("user-1", input)

	reply := nextAIResponse(t, user)
	if reply.Text != "echo: what is S3?" {
		t.Fatalf("reply = %q", reply.Text)
	}

	msgs := waitForMessages(t, st, "sess-2", 3)
	roles := []string{msgs[0].Role, msgs[1].Role, msgs[2].Role}
	if roles[0] != "assistant" || roles[1] != "user" || roles[2] != "assistant" {
		t.Fatalf("roles = %v", roles)
	}
	if msgs[1].Text != "what is S3?" {
		t.Fatalf("user message = %q", msgs[1].Text)
	}
}

func TestAgentAnswersScreenFrames(t *testing.T) {
	st := store.NewMemory()
	rm, user := newAgentRoom(t, st)

	start, _ := json.Marshal(protocol.StartSession{Type: protocol.DataTypeStartSession, SessionID: "sess-3", UserID: "user-1"})
	rm.Data("user-1", start)
	nextAIResponse(t, user)

	frame, _ := json.Marshal(protocol.ScreenShareFrame{
		Type:      protocol.DataTypeScreenShareFrame,
		SessionID: "sess-3",
		Data:      []byte{1, 2, 3},
		Format:    "png",
	})
	rm.Data("user-1", frame)

	if reply := nextAIResponse(t, user); reply.Text != "I see a console" {
		t.Fatalf("reply = %q", reply.Text)
	}
}

func TestAgentEndsSession(t *testing.T) {
	st := store.NewMemory()
	rm, user := newAgentRoom(t, st)

	start, _ := json.Marshal(protocol.StartSession{Type: protocol.DataTypeStartSession, SessionID: "sess-4", UserID: "user-1"})
	rm.Data("user-1", start)
	nextAIResponse(t, user)

	end, _ := json.Marshal(protocol.EndSession{Type: protocol.DataTypeEndSession, SessionID: "sess-4"})
	rm.Data("user-1", end)

	deadline := time.Now().Add(testWait)
	for {
		session, err := st.SessionByID(context.Background(), "sess-4")
		if err == nil && session.EndedAt != nil {
			if session.Status != "ended" {
				t.Fatalf("status = %q", session.Status)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("session never ended")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAgentIgnoresMalformedPayloads(t *testing.T) {
	st := store.NewMemory()
	rm, user := newAgentRoom(t, st)

	rm.Data("user-1", json.RawMessage(`"not an object"`))
	rm.Data("user-1", json.RawMessage(`{"type":"text_input"}`)) // empty text
	rm.Data("user-1", json.RawMessage(`{"no_type":true}`))

	user.expectNone(t)
}

func TestAgentLeavesWhenHumansGone(t *testing.T) {
	hub := NewHub(nil)
	rm := hub.Room("demo")
	agent := NewAgent(AgentConfig{Brain: echoBrain{}, Logger: discardLogger()})
	agent.EnsureJoined(rm)

	user := newChanSender()
	rm.Join("user-1", "Demo", user)
	rm.Leave("user-1")

	deadline := time.Now().Add(testWait)
	for hub.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("hub count = %d, want 0 after agent leaves", hub.Count())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
