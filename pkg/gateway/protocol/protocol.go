// Package protocol defines the Cloudy room signaling frames exchanged over
// the /v1/rooms/ws WebSocket, plus the data-channel envelope relayed between
// participants.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ProtocolVersion1 = "1"

// DecodeError describes a rejected inbound frame.
type DecodeError struct {
	Code    string
	Message string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func badFrame(code, message string) *DecodeError {
	return &DecodeError{Code: code, Message: message}
}

// TrackInfo describes a published media track.
type TrackInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// ParticipantInfo describes a room participant and its published tracks.
type ParticipantInfo struct {
	Identity string      `json:"identity"`
	Name     string      `json:"name,omitempty"`
	Tracks   []TrackInfo `json:"tracks,omitempty"`
}

// Client -> server frames.

type ClientJoin struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Token           string `json:"token"`
	Room            string `json:"room"`
	Identity        string `json:"identity"`
	Name            string `json:"name,omitempty"`
}

type ClientPublishTrack struct {
	Type  string    `json:"type"`
	Track TrackInfo `json:"track"`
}

type ClientUnpublishTrack struct {
	Type    string `json:"type"`
	TrackID string `json:"track_id"`
}

type ClientData struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ClientLeave struct {
	Type string `json:"type"`
}

// Server -> client frames.

type ServerJoined struct {
	Type         string            `json:"type"`
	Room         string            `json:"room"`
	SessionID    string            `json:"session_id"`
	Local        ParticipantInfo   `json:"local"`
	Participants []ParticipantInfo `json:"participants"`
}

type ServerParticipantJoined struct {
	Type        string          `json:"type"`
	Participant ParticipantInfo `json:"participant"`
}

type ServerParticipantLeft struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
}

type ServerTrackPublished struct {
	Type     string    `json:"type"`
	Identity string    `json:"identity"`
	Track    TrackInfo `json:"track"`
}

type ServerTrackUnpublished struct {
	Type     string `json:"type"`
	Identity string `json:"identity"`
	TrackID  string `json:"track_id"`
}

type ServerData struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

type ServerAudioLevel struct {
	Type     string  `json:"type"`
	Identity string  `json:"identity"`
	Level    float64 `json:"level"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeClientMessage decodes an inbound client frame by its type tag.
func DecodeClientMessage(data []byte) (any, error) {
	typ, err := frameType(data)
	if err != nil {
		return nil, err
	}
	switch typ {
	case "join":
		var msg ClientJoin
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid join frame")
		}
		return msg, nil
	case "publish_track":
		var msg ClientPublishTrack
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid publish_track frame")
		}
		if strings.TrimSpace(msg.Track.ID) == "" {
			return nil, badFrame("bad_request", "publish_track requires track.id")
		}
		return msg, nil
	case "unpublish_track":
		var msg ClientUnpublishTrack
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid unpublish_track frame")
		}
		return msg, nil
	case "data":
		var msg ClientData
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid data frame")
		}
		return msg, nil
	case "leave":
		return ClientLeave{Type: "leave"}, nil
	default:
		return nil, badFrame("invalid_action", fmt.Sprintf("unknown frame type %q", typ))
	}
}

// DecodeServerMessage decodes an inbound server frame by its type tag.
func DecodeServerMessage(data []byte) (any, error) {
	typ, err := frameType(data)
	if err != nil {
		return nil, err
	}
	switch typ {
	case "joined":
		var msg ServerJoined
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid joined frame")
		}
		return msg, nil
	case "participant_joined":
		var msg ServerParticipantJoined
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid participant_joined frame")
		}
		return msg, nil
	case "participant_left":
		var msg ServerParticipantLeft
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid participant_left frame")
		}
		return msg, nil
	case "track_published":
		var msg ServerTrackPublished
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid track_published frame")
		}
		return msg, nil
	case "track_unpublished":
		var msg ServerTrackUnpublished
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid track_unpublished frame")
		}
		return msg, nil
	case "data":
		var msg ServerData
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid data frame")
		}
		return msg, nil
	case "audio_level":
		var msg ServerAudioLevel
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid audio_level frame")
		}
		return msg, nil
	case "error":
		var msg ServerError
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badFrame("bad_request", "invalid error frame")
		}
		return msg, nil
	default:
		return nil, badFrame("invalid_action", fmt.Sprintf("unknown frame type %q", typ))
	}
}

func frameType(data []byte) (string, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", badFrame("invalid_json", "frame is not valid JSON")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return "", badFrame("bad_request", "frame missing type")
	}
	return typ, nil
}
