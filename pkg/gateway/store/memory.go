package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]*User
	sessions map[string]*Session
	messages map[string][]*Message
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]*User),
		sessions: make(map[string]*Session),
		messages: make(map[string][]*Message),
		now:      time.Now,
	}
}

func (m *Memory) CreateUser(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := m.now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.IsActive = true

	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Memory) UserByUsernameOrEmail(_ context.Context, usernameOrEmail string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, usernameOrEmail) || strings.EqualFold(u.Email, usernameOrEmail) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UpdateUserProfile(_ context.Context, id string, update ProfileUpdate) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if update.Email != nil {
		for otherID, other := range m.users {
			if otherID != id && strings.EqualFold(other.Email, *update.Email) {
				return nil, ErrConflict
			}
		}
		u.Email = *update.Email
	}
	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	u.UpdatedAt = m.now().UTC()

	cp := *u
	return &cp, nil
}

func (m *Memory) CreateSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if _, exists := m.sessions[s.ID]; exists {
		return ErrConflict
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = m.now().UTC()
	}
	if s.Status == "" {
		s.Status = "active"
	}

	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *Memory) EndSession(_ context.Context, id string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.EndedAt == nil {
		ended := endedAt.UTC()
		s.EndedAt = &ended
		s.Status = "ended"
	}
	return nil
}

func (m *Memory) SessionByID(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) SessionsByUser(_ context.Context, userID string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[msg.SessionID]; !ok {
		return ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now().UTC()
	}

	cp := *msg
	cp.AudioData = append([]byte(nil), msg.AudioData...)
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &cp)
	return nil
}

func (m *Memory) MessagesBySession(_ context.Context, sessionID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return nil, ErrNotFound
	}
	msgs := m.messages[sessionID]
	out := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		cp.AudioData = append([]byte(nil), msg.AudioData...)
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
