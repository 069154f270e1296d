package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cloudy-ai/cloudy/pkg/gateway/protocol"
)

type roomGrant struct {
	RoomName      string `json:"room_name"`
	URL           string `json:"url"`
	Token         string `json:"token"`
	AgentIdentity string `json:"agent_identity"`
	ExpiresIn     int    `json:"expires_in"`
}

// CreateRoom handles POST /v1/rooms. It mints a room access token for the
// caller. The room itself, agent included, materializes when the first
// participant dials the signaling endpoint; minting a grant that nobody uses
// must not pin anything in the hub.
func (d *Deps) CreateRoom(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		RoomName string `json:"room_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	roomName := strings.TrimSpace(req.RoomName)
	if roomName == "" {
		roomName = "cloudy-" + uuid.NewString()
	}

	token, ttl, err := d.Tokens.IssueRoomToken(roomName, p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	d.Logger.Info("room created", "room", roomName, "user_id", p.UserID)
	writeJSON(w, http.StatusOK, roomGrant{
		RoomName:      roomName,
		URL:           d.Config.PublicURL,
		Token:         token,
		AgentIdentity: d.Agent.Identity(),
		ExpiresIn:     ttl,
	})
}

var wsCloseGoingAway = websocket.FormatCloseMessage(websocket.CloseGoingAway, "")

// wsConn adapts one WebSocket connection to the room Sender contract.
type wsConn struct {
	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (c *wsConn) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) sendError(code, message string) {
	_ = c.Send(protocol.ServerError{Type: "error", Code: code, Message: message})
}

// RoomWS handles GET /v1/rooms/ws. The first frame must be a join carrying a
// valid room token; after that the connection relays signaling frames until
// the client leaves or the socket drops.
func (d *Deps) RoomWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(d.Config.CORSAllowedOrigins) == 0 {
				return true
			}
			_, ok := d.Config.CORSAllowedOrigins[origin]
			return ok
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	conn.SetReadLimit(d.Config.RoomMaxMessageBytes)
	sender := &wsConn{conn: conn, writeTimeout: d.Config.RoomWriteTimeout}

	join, ok := d.readJoin(conn, sender)
	if !ok {
		return
	}

	grant, err := d.Tokens.VerifyRoomToken(join.Token)
	if err != nil {
		sender.sendError("unauthorized", "invalid room token")
		return
	}
	if grant.Room != join.Room {
		sender.sendError("unauthorized", "token does not grant this room")
		return
	}

	identity := join.Identity
	if identity == "" {
		identity = grant.Identity
	}

	rm := d.Hub.Room(join.Room)
	d.Agent.EnsureJoined(rm)
	others := rm.Join(identity, join.Name, sender)

	sessionID := uuid.NewString()
	err = sender.Send(protocol.ServerJoined{
		Type:      "joined",
		Room:      join.Room,
		SessionID: sessionID,
		Local: protocol.ParticipantInfo{
			Identity: identity,
			Name:     join.Name,
			Tracks:   []protocol.TrackInfo{},
		},
		Participants: others,
	})
	if err != nil {
		rm.LeaveSender(identity, sender)
		return
	}
	d.Logger.Info("participant joined room", "room", join.Room, "identity", identity, "session_id", sessionID)

	// Teardown is bound to this connection. A reconnect with the same
	// identity replaces the roster entry, and this close must not evict it.
	defer func() {
		rm.LeaveSender(identity, sender)
		d.Logger.Info("participant left room", "room", join.Room, "identity", identity)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			if de, ok := err.(*protocol.DecodeError); ok {
				sender.sendError(de.Code, de.Message)
				continue
			}
			sender.sendError("bad_request", "invalid frame")
			continue
		}

		switch frame := msg.(type) {
		case protocol.ClientPublishTrack:
			rm.PublishTrack(identity, frame.Track)
		case protocol.ClientUnpublishTrack:
			rm.UnpublishTrack(identity, frame.TrackID)
		case protocol.ClientData:
			rm.Data(identity, frame.Payload)
		case protocol.ClientLeave:
			_ = conn.WriteControl(websocket.CloseMessage, wsCloseGoingAway, time.Now().Add(d.Config.RoomWriteTimeout))
			return
		case protocol.ClientJoin:
			sender.sendError("invalid_action", "already joined")
		}
	}
}

// readJoin reads and validates the handshake frame.
func (d *Deps) readJoin(conn *websocket.Conn, sender *wsConn) (protocol.ClientJoin, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(d.Config.RoomHandshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return protocol.ClientJoin{}, false
	}
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		if de, ok := err.(*protocol.DecodeError); ok {
			sender.sendError(de.Code, de.Message)
		}
		return protocol.ClientJoin{}, false
	}
	join, ok := msg.(protocol.ClientJoin)
	if !ok {
		sender.sendError("invalid_action", "first frame must be join")
		return protocol.ClientJoin{}, false
	}
	if join.ProtocolVersion != "" && join.ProtocolVersion != protocol.ProtocolVersion1 {
		sender.sendError("bad_request", "unsupported protocol version")
		return protocol.ClientJoin{}, false
	}
	if strings.TrimSpace(join.Room) == "" || strings.TrimSpace(join.Token) == "" {
		sender.sendError("bad_request", "join requires room and token")
		return protocol.ClientJoin{}, false
	}
	return join, true
}
