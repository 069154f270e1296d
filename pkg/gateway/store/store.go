// Package store persists users, assistant sessions, and conversation
// messages. Two implementations exist: an in-memory store for tests and
// single-node demos, and a Postgres store for real deployments.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("store: conflict")
)

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionConfig captures the per-session assistant options.
type SessionConfig struct {
	VoiceEnabled       bool   `json:"voice_enabled"`
	ScreenShareEnabled bool   `json:"screen_share_enabled"`
	Language           string `json:"language"`
	VoiceModel         string `json:"voice_model"`
}

// Session is one assistant conversation.
type Session struct {
	ID        string
	UserID    string
	RoomName  string
	Config    SessionConfig
	Status    string
	StartedAt time.Time
	EndedAt   *time.Time
}

// Message is one utterance within a session.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Text      string
	AudioData []byte
	CreatedAt time.Time
}

// ProfileUpdate carries the mutable profile fields. Nil means unchanged.
type ProfileUpdate struct {
	Email    *string
	FullName *string
}

// Store is the persistence surface used by the gateway.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	UserByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*User, error)
	UserByID(ctx context.Context, id string) (*User, error)
	UpdateUserProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error)

	CreateSession(ctx context.Context, s *Session) error
	EndSession(ctx context.Context, id string, endedAt time.Time) error
	SessionByID(ctx context.Context, id string) (*Session, error)
	SessionsByUser(ctx context.Context, userID string) ([]*Session, error)

	AppendMessage(ctx context.Context, m *Message) error
	MessagesBySession(ctx context.Context, sessionID string) ([]*Message, error)

	Close() error
}
