package cloudy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cloudy-ai/cloudy/pkg/gateway/protocol"
)

const (
	defaultRoomConnectTimeout = 15 * time.Second
	defaultAgentIdentity      = "cloudy-agent"
)

// ConnectionState is the top-level room connection state.
type ConnectionState string

const (
	StateIdle         ConnectionState = "idle"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateError        ConnectionState = "error"
)

// ActivityState is the voice-activity sub-state. It is only meaningful while
// the connection state is connected.
type ActivityState string

const (
	ActivityNone       ActivityState = "none"
	ActivityListening  ActivityState = "listening"
	ActivityProcessing ActivityState = "processing"
	ActivitySpeaking   ActivityState = "speaking"
)

// Participant identifies a room participant.
type Participant struct {
	Identity string
	Name     string
}

// AIResponse is a decoded assistant response from the room data channel.
type AIResponse struct {
	Text      string
	AudioData []byte
	SessionID string
}

// Callbacks is the typed event surface of the RoomClient. SetCallbacks merges
// non-nil fields into the registered set, so independent subscribers can each
// register the events they care about without clobbering earlier ones.
type Callbacks struct {
	OnConnected          func(c *RoomClient)
	OnDisconnected       func()
	OnParticipantJoined  func(p Participant)
	OnParticipantLeft    func(p Participant)
	OnTrackSubscribed    func(track RemoteTrack)
	OnTrackUnsubscribed  func(track RemoteTrack)
	OnDataReceived       func(payload []byte, from Participant)
	OnAudioLevelChanged  func(identity string, level float64)
	OnAIResponse         func(resp AIResponse)
	OnScreenShareStarted func(track LocalTrack)
	OnScreenShareStopped func()
	OnError              func(err error)
}

func (c *Callbacks) merge(set Callbacks) {
	if set.OnConnected != nil {
		c.OnConnected = set.OnConnected
	}
	if set.OnDisconnected != nil {
		c.OnDisconnected = set.OnDisconnected
	}
	if set.OnParticipantJoined != nil {
		c.OnParticipantJoined = set.OnParticipantJoined
	}
	if set.OnParticipantLeft != nil {
		c.OnParticipantLeft = set.OnParticipantLeft
	}
	if set.OnTrackSubscribed != nil {
		c.OnTrackSubscribed = set.OnTrackSubscribed
	}
	if set.OnTrackUnsubscribed != nil {
		c.OnTrackUnsubscribed = set.OnTrackUnsubscribed
	}
	if set.OnDataReceived != nil {
		c.OnDataReceived = set.OnDataReceived
	}
	if set.OnAudioLevelChanged != nil {
		c.OnAudioLevelChanged = set.OnAudioLevelChanged
	}
	if set.OnAIResponse != nil {
		c.OnAIResponse = set.OnAIResponse
	}
	if set.OnScreenShareStarted != nil {
		c.OnScreenShareStarted = set.OnScreenShareStarted
	}
	if set.OnScreenShareStopped != nil {
		c.OnScreenShareStopped = set.OnScreenShareStopped
	}
	if set.OnError != nil {
		c.OnError = set.OnError
	}
}

// RoomConfig configures a room connection.
type RoomConfig struct {
	// ServerURL is the Cloudy gateway base URL (http(s) or ws(s) scheme).
	ServerURL string
	// Token is the room access token minted by the gateway.
	Token string
	// RoomName is the room to join.
	RoomName string
	// Identity is the local participant identity. Defaults to a derived value
	// from ParticipantName when empty.
	Identity string
	// ParticipantName is the local display name.
	ParticipantName string

	// MediaProvider acquires local capture tracks. Required before any
	// Start*Capture call.
	MediaProvider MediaProvider
	// AudioSink renders remote AI audio. Optional.
	AudioSink AudioSink
	// AgentIdentityPrefix identifies the AI participant by its identity
	// prefix. Defaults to "cloudy-agent".
	AgentIdentityPrefix string

	// HandshakeTimeout bounds the join handshake. Defaults to 15s.
	HandshakeTimeout time.Duration

	// Logger overrides the constructor logger for this session. Optional.
	Logger *slog.Logger
}

// RoomState is a read-only snapshot of the room session.
type RoomState struct {
	State        ConnectionState
	Activity     ActivityState
	IsConnected  bool
	Local        *Participant
	Participants []Participant
	// AgentParticipant is the identified AI participant, when present.
	AgentParticipant *Participant
}

// RoomClient owns the lifecycle of one real-time room session: connection
// state, local track handles, the data channel, and the callback surface.
type RoomClient struct {
	logger *slog.Logger

	mu        sync.Mutex
	state     ConnectionState
	activity  ActivityState
	callbacks Callbacks
	cfg       RoomConfig

	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}

	local       *Participant
	remote      map[string]Participant
	agent       *Participant
	audioTrack  LocalTrack
	videoTrack  LocalTrack
	screenTrack LocalTrack
	sinkTracks  map[string]RemoteTrack
}

// NewRoomClient creates a disconnected room client.
func NewRoomClient(logger *slog.Logger) *RoomClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomClient{
		logger:     logger,
		state:      StateIdle,
		activity:   ActivityNone,
		remote:     make(map[string]Participant),
		sinkTracks: make(map[string]RemoteTrack),
	}
}

// SetCallbacks merges the non-nil handlers of set into the registered set.
func (c *RoomClient) SetCallbacks(set Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks.merge(set)
}

// Connect joins the configured room. On success the connected callback fires
// with the client as the room handle; on failure the error callback fires and
// the connection error is returned to the caller. Connect does not retry;
// see ConnectWithRetry.
func (c *RoomClient) Connect(ctx context.Context, cfg RoomConfig) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return NewConnectionError("room client already has an active session", nil)
	}
	if cfg.AgentIdentityPrefix == "" {
		cfg.AgentIdentityPrefix = defaultAgentIdentity
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultRoomConnectTimeout
	}
	if cfg.Identity == "" {
		cfg.Identity = "user-" + strings.ToLower(strings.ReplaceAll(cfg.ParticipantName, " ", "-"))
	}
	if cfg.Logger != nil {
		c.logger = cfg.Logger
	}
	c.cfg = cfg
	c.state = StateConnecting
	c.mu.Unlock()

	joined, conn, err := c.dialAndJoin(ctx, cfg)
	if err != nil {
		connErr := NewConnectionError("failed to join room", err)
		c.mu.Lock()
		c.state = StateError
		onError := c.callbacks.OnError
		c.mu.Unlock()
		if onError != nil {
			onError(connErr)
		}
		return connErr
	}

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	c.state = StateConnected
	c.activity = ActivityNone
	c.local = &Participant{Identity: joined.Local.Identity, Name: joined.Local.Name}
	c.remote = make(map[string]Participant)
	c.agent = nil
	for _, p := range joined.Participants {
		participant := Participant{Identity: p.Identity, Name: p.Name}
		c.remote[p.Identity] = participant
		if strings.HasPrefix(p.Identity, cfg.AgentIdentityPrefix) {
			agent := participant
			c.agent = &agent
		}
	}
	onConnected := c.callbacks.OnConnected
	c.mu.Unlock()

	go c.readLoop(conn)

	if onConnected != nil {
		onConnected(c)
	}
	return nil
}

func (c *RoomClient) dialAndJoin(ctx context.Context, cfg RoomConfig) (*protocol.ServerJoined, *websocket.Conn, error) {
	endpoint, err := roomWebSocketURL(cfg.ServerURL)
	if err != nil {
		return nil, nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.HandshakeTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	join := protocol.ClientJoin{
		Type:            "join",
		ProtocolVersion: protocol.ProtocolVersion1,
		Token:           cfg.Token,
		Room:            cfg.RoomName,
		Identity:        cfg.Identity,
		Name:            cfg.ParticipantName,
	}
	if err := conn.WriteJSON(join); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("send join: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("read join ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	decoded, err := protocol.DecodeServerMessage(frame)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("decode join ack: %w", err)
	}
	switch msg := decoded.(type) {
	case protocol.ServerJoined:
		return &msg, conn, nil
	case protocol.ServerError:
		conn.Close()
		return nil, nil, fmt.Errorf("room rejected join: %s: %s", msg.Code, msg.Message)
	default:
		conn.Close()
		return nil, nil, fmt.Errorf("unexpected join ack frame %T", decoded)
	}
}

// Disconnect tears down the room connection, releases local tracks, and
// resets all cached track handles. It is safe to call when not connected.
func (c *RoomClient) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.conn = nil
	tracks := []LocalTrack{c.audioTrack, c.videoTrack, c.screenTrack}
	c.audioTrack, c.videoTrack, c.screenTrack = nil, nil, nil
	c.sinkTracks = make(map[string]RemoteTrack)
	wasConnected := c.state == StateConnected
	c.state = StateDisconnected
	c.activity = ActivityNone
	c.remote = make(map[string]Participant)
	c.agent = nil
	c.local = nil
	onDisconnected := c.callbacks.OnDisconnected
	c.mu.Unlock()

	for _, track := range tracks {
		if track == nil {
			continue
		}
		if err := track.Close(); err != nil {
			c.logger.Warn("closing local track", "track_id", track.ID(), "error", err)
		}
	}

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteJSON(protocol.ClientLeave{Type: "leave"})
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
	if done != nil {
		<-done
	}

	if wasConnected && onDisconnected != nil {
		onDisconnected()
	}
}

// SendData serializes payload as JSON and publishes it reliably over the
// room data channel.
func (c *RoomClient) SendData(payload any) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return NewNotConnectedError("SendData")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode data payload: %w", err)
	}
	if err := c.writeJSON(protocol.ClientData{Type: "data", Payload: raw}); err != nil {
		return NewConnectionError("publish data", err)
	}

	if typ, ok := protocol.PayloadType(raw); ok {
		switch typ {
		case protocol.DataTypeTextInput, protocol.DataTypeAudioInput, protocol.DataTypeScreenShareFrame:
			c.setActivity(ActivityProcessing)
		}
	}
	return nil
}

// GetState returns a read-only snapshot of the session.
func (c *RoomClient) GetState() RoomState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := RoomState{
		State:       c.state,
		Activity:    c.activity,
		IsConnected: c.state == StateConnected,
	}
	if c.local != nil {
		local := *c.local
		state.Local = &local
	}
	if c.agent != nil {
		agent := *c.agent
		state.AgentParticipant = &agent
	}
	for _, p := range c.remote {
		state.Participants = append(state.Participants, p)
	}
	return state
}

// AudioTrack returns the active local microphone track, or nil.
func (c *RoomClient) AudioTrack() LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioTrack
}

// VideoTrack returns the active local camera track, or nil.
func (c *RoomClient) VideoTrack() LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.videoTrack
}

// ScreenTrack returns the active screen-share track, or nil.
func (c *RoomClient) ScreenTrack() LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screenTrack
}

func (c *RoomClient) writeJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return NewNotConnectedError("write")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// setActivity updates the voice-activity sub-state. Sub-states only hold
// while the top-level state is connected.
func (c *RoomClient) setActivity(activity ActivityState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return
	}
	c.activity = activity
}

func (c *RoomClient) snapshotCallbacks() Callbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callbacks
}

// roomWebSocketURL derives the signaling endpoint from a gateway base URL.
func roomWebSocketURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server url %q: missing host", serverURL)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/rooms/ws"
	return u.String(), nil
}
