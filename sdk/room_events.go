package cloudy

import (
	"encoding/json"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/cloudy-ai/cloudy/pkg/gateway/protocol"
)

// readLoop delivers server frames in arrival order. It exits when the
// connection closes, tearing the session down unless Disconnect already did.
func (c *RoomClient) readLoop(conn *websocket.Conn) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	defer close(done)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			abnormal := !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			c.teardownFromRead(conn, err, abnormal)
			return
		}

		decoded, err := protocol.DecodeServerMessage(frame)
		if err != nil {
			// Malformed inbound frames are non-fatal; log and drop.
			c.logger.Warn("dropping malformed room frame", "error", err)
			continue
		}
		c.handleServerMessage(decoded)
	}
}

// teardownFromRead handles the connection closing underneath the client. When
// Disconnect initiated the close it has already reset the session and c.conn
// no longer points at this connection.
func (c *RoomClient) teardownFromRead(conn *websocket.Conn, err error, abnormal bool) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	tracks := []LocalTrack{c.audioTrack, c.videoTrack, c.screenTrack}
	c.audioTrack, c.videoTrack, c.screenTrack = nil, nil, nil
	c.sinkTracks = make(map[string]RemoteTrack)
	c.remote = make(map[string]Participant)
	c.agent = nil
	c.local = nil
	if abnormal {
		c.state = StateError
	} else {
		c.state = StateDisconnected
	}
	c.activity = ActivityNone
	cbs := c.callbacks
	c.mu.Unlock()

	for _, track := range tracks {
		if track == nil {
			continue
		}
		_ = track.Close()
	}

	if abnormal {
		c.logger.Warn("room connection lost", "error", err)
		if cbs.OnError != nil {
			cbs.OnError(NewConnectionError("room connection lost", err))
		}
	}
	if cbs.OnDisconnected != nil {
		cbs.OnDisconnected()
	}
	_ = conn.Close()
}

func (c *RoomClient) handleServerMessage(decoded any) {
	switch msg := decoded.(type) {
	case protocol.ServerParticipantJoined:
		c.handleParticipantJoined(msg)
	case protocol.ServerParticipantLeft:
		c.handleParticipantLeft(msg)
	case protocol.ServerTrackPublished:
		c.handleTrackPublished(msg)
	case protocol.ServerTrackUnpublished:
		c.handleTrackUnpublished(msg)
	case protocol.ServerData:
		c.handleData(msg)
	case protocol.ServerAudioLevel:
		if cb := c.snapshotCallbacks().OnAudioLevelChanged; cb != nil {
			cb(msg.Identity, msg.Level)
		}
	case protocol.ServerError:
		if cb := c.snapshotCallbacks().OnError; cb != nil {
			cb(NewConnectionError(msg.Code+": "+msg.Message, nil))
		}
	default:
		c.logger.Debug("ignoring unhandled room frame", "frame", decoded)
	}
}

func (c *RoomClient) handleParticipantJoined(msg protocol.ServerParticipantJoined) {
	participant := Participant{Identity: msg.Participant.Identity, Name: msg.Participant.Name}

	c.mu.Lock()
	c.remote[participant.Identity] = participant
	if strings.HasPrefix(participant.Identity, c.cfg.AgentIdentityPrefix) {
		agent := participant
		c.agent = &agent
		c.logger.Info("ai participant joined", "identity", participant.Identity)
	}
	cb := c.callbacks.OnParticipantJoined
	c.mu.Unlock()

	if cb != nil {
		cb(participant)
	}
}

func (c *RoomClient) handleParticipantLeft(msg protocol.ServerParticipantLeft) {
	c.mu.Lock()
	participant, known := c.remote[msg.Identity]
	delete(c.remote, msg.Identity)
	if c.agent != nil && c.agent.Identity == msg.Identity {
		c.agent = nil
	}
	var detach []RemoteTrack
	for id, track := range c.sinkTracks {
		if track.Participant.Identity == msg.Identity {
			detach = append(detach, track)
			delete(c.sinkTracks, id)
		}
	}
	sink := c.cfg.AudioSink
	cb := c.callbacks.OnParticipantLeft
	c.mu.Unlock()

	if sink != nil {
		for _, track := range detach {
			sink.Detach(track.ID)
		}
	}
	if !known {
		participant = Participant{Identity: msg.Identity}
	}
	if cb != nil {
		cb(participant)
	}
}

func (c *RoomClient) handleTrackPublished(msg protocol.ServerTrackPublished) {
	c.mu.Lock()
	participant, ok := c.remote[msg.Identity]
	if !ok {
		participant = Participant{Identity: msg.Identity}
	}
	track := RemoteTrack{ID: msg.Track.ID, Kind: TrackKind(msg.Track.Kind), Participant: participant}
	fromAgent := c.agent != nil && c.agent.Identity == msg.Identity
	sink := c.cfg.AudioSink
	if sink == nil {
		sink = noopSink{}
	}
	if fromAgent && track.Kind == TrackKindAudio {
		c.sinkTracks[track.ID] = track
	}
	cb := c.callbacks.OnTrackSubscribed
	c.mu.Unlock()

	// AI audio is attached to the playback sink for immediate rendering.
	if fromAgent && track.Kind == TrackKindAudio {
		if err := sink.Attach(track); err != nil {
			c.logger.Warn("attaching ai audio track to sink", "track_id", track.ID, "error", err)
		}
	}
	if cb != nil {
		cb(track)
	}
}

func (c *RoomClient) handleTrackUnpublished(msg protocol.ServerTrackUnpublished) {
	c.mu.Lock()
	participant, ok := c.remote[msg.Identity]
	if !ok {
		participant = Participant{Identity: msg.Identity}
	}
	attached, wasAttached := c.sinkTracks[msg.TrackID]
	delete(c.sinkTracks, msg.TrackID)
	sink := c.cfg.AudioSink
	cb := c.callbacks.OnTrackUnsubscribed
	c.mu.Unlock()

	track := RemoteTrack{ID: msg.TrackID, Kind: TrackKindAudio, Participant: participant}
	if wasAttached {
		track = attached
		if sink != nil {
			sink.Detach(msg.TrackID)
		}
	}
	if cb != nil {
		cb(track)
	}
}

// handleData routes data-channel payloads. Payloads carrying the ai_response
// envelope go to the AI-response callback; other well-formed payloads go to
// the generic data callback; malformed payloads are logged and dropped.
func (c *RoomClient) handleData(msg protocol.ServerData) {
	c.mu.Lock()
	from, ok := c.remote[msg.From]
	if !ok {
		from = Participant{Identity: msg.From}
	}
	cbs := c.callbacks
	c.mu.Unlock()

	typ, ok := protocol.PayloadType(msg.Payload)
	if !ok {
		c.logger.Warn("dropping malformed data payload", "from", msg.From)
		return
	}

	if typ == protocol.DataTypeAIResponse {
		var envelope protocol.DataEnvelope
		if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
			c.logger.Warn("dropping malformed ai_response payload", "from", msg.From, "error", err)
			return
		}
		c.setActivity(ActivitySpeaking)
		if cbs.OnAIResponse != nil {
			cbs.OnAIResponse(AIResponse{Text: envelope.Text, AudioData: envelope.AudioData, SessionID: envelope.SessionID})
		}
		return
	}

	if cbs.OnDataReceived != nil {
		cbs.OnDataReceived(append([]byte(nil), msg.Payload...), from)
	}
}
