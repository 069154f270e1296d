package protocol

import "encoding/json"

// Data-channel envelope types relayed between participants. The envelope is
// UTF-8 JSON; unknown types are still delivered to every participant, only
// the well-known ones get special handling.
const (
	DataTypeAIResponse       = "ai_response"
	DataTypeTextInput        = "text_input"
	DataTypeAudioInput       = "audio_input"
	DataTypeScreenShareFrame = "screen_share_frame"
	DataTypeStartSession     = "start_session"
	DataTypeEndSession       = "end_session"
)

// DataEnvelope is the assistant response envelope carried on the data channel.
type DataEnvelope struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	AudioData []byte `json:"audioData,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// TextInput carries a typed user prompt for the agent.
type TextInput struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text"`
}

// AudioInput carries a user audio chunk for the agent.
type AudioInput struct {
	Type         string `json:"type"`
	SessionID    string `json:"session_id,omitempty"`
	Data         []byte `json:"data"`
	Format       string `json:"format,omitempty"`
	SampleRateHz int    `json:"sample_rate_hz,omitempty"`
	Channels     int    `json:"channels,omitempty"`
}

// ScreenShareFrame carries one captured screen frame for the agent. Prompt is
// an optional question about the frame.
type ScreenShareFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Data      []byte `json:"data"`
	Format    string `json:"format,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
}

// SessionConfig carries the per-session assistant options.
type SessionConfig struct {
	VoiceEnabled       bool   `json:"voice_enabled"`
	ScreenShareEnabled bool   `json:"screen_share_enabled"`
	Language           string `json:"language,omitempty"`
	VoiceModel         string `json:"voice_model,omitempty"`
}

// StartSession asks the agent to begin a conversation session.
type StartSession struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Config    SessionConfig `json:"config"`
}

// EndSession asks the agent to end a conversation session.
type EndSession struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// PayloadType extracts the type tag from a raw data-channel payload. It
// returns ok=false when the payload is not a JSON object with a type tag.
func PayloadType(payload json.RawMessage) (string, bool) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", false
	}
	if envelope.Type == "" {
		return "", false
	}
	return envelope.Type, true
}
