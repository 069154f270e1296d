package cloudy

import "time"

// RegisterRequest registers a new user account.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// LoginRequest authenticates by username (or email) and password.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the login result.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// UserProfile is a user account as returned by the gateway.
type UserProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `json:"is_active"`
}

// ProfileUpdate carries the mutable profile fields.
type ProfileUpdate struct {
	Email    *string `json:"email,omitempty"`
	FullName *string `json:"full_name,omitempty"`
}

// SessionConfig is the per-session feature configuration.
type SessionConfig struct {
	VoiceEnabled       bool   `json:"voice_enabled"`
	ScreenShareEnabled bool   `json:"screen_share_enabled"`
	Language           string `json:"language,omitempty"`
	VoiceModel         string `json:"voice_model,omitempty"`
}

// SessionInfo describes one conversation session.
type SessionInfo struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Config    SessionConfig `json:"config"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// SessionMessage is one turn in a conversation.
type SessionMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	AudioData []byte    `json:"audioData,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionHistory is the ordered message list of one session.
type SessionHistory struct {
	SessionID       string           `json:"session_id"`
	Messages        []SessionMessage `json:"messages"`
	TotalMessages   int              `json:"total_messages"`
	DurationSeconds *float64         `json:"duration_seconds,omitempty"`
}

// HealthStatus is the gateway health report.
type HealthStatus struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// RoomGrant is the result of creating a room: where to connect and the access
// token for the local participant.
type RoomGrant struct {
	RoomName      string `json:"room_name"`
	URL           string `json:"url"`
	Token         string `json:"token"`
	AgentIdentity string `json:"agent_identity"`
	ExpiresIn     int    `json:"expires_in"`
}

// CheckoutSession is a billing checkout redirect.
type CheckoutSession struct {
	Plan string `json:"plan"`
	URL  string `json:"url"`
}
