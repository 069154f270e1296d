package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryUserLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	user := &User{Username: "demo", Email: "demo@example.com", PasswordHash: "hash"}
	if err := m.CreateUser(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.ID == "" {
		t.Fatal("create should assign an id")
	}
	if !user.IsActive {
		t.Fatal("new users should be active")
	}

	// Duplicate username and email are rejected case-insensitively.
	err := m.CreateUser(ctx, &User{Username: "DEMO", Email: "other@example.com"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate username error = %v", err)
	}
	err = m.CreateUser(ctx, &User{Username: "other", Email: "Demo@Example.com"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email error = %v", err)
	}

	byName, err := m.UserByUsernameOrEmail(ctx, "demo")
	if err != nil || byName.ID != user.ID {
		t.Fatalf("lookup by username: %v %+v", err, byName)
	}
	byEmail, err := m.UserByUsernameOrEmail(ctx, "demo@example.com")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("lookup by email: %v %+v", err, byEmail)
	}
	if _, err := m.UserByUsernameOrEmail(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing user error = %v", err)
	}

	fullName := "Demo User"
	updated, err := m.UpdateUserProfile(ctx, user.ID, ProfileUpdate{FullName: &fullName})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FullName != "Demo User" {
		t.Fatalf("full name = %q", updated.FullName)
	}
	if updated.Email != "demo@example.com" {
		t.Fatal("unset fields should not change")
	}
}

func TestMemorySessionsAndMessages(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	user := &User{Username: "demo", Email: "demo@example.com"}
	if err := m.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	first := &Session{UserID: user.ID, StartedAt: time.Now().Add(-time.Hour)}
	second := &Session{UserID: user.ID}
	if err := m.CreateSession(ctx, first); err != nil {
		t.Fatalf("create first session: %v", err)
	}
	if err := m.CreateSession(ctx, second); err != nil {
		t.Fatalf("create second session: %v", err)
	}
	if first.Status != "active" {
		t.Fatalf("status = %q, want active", first.Status)
	}

	sessions, err := m.SessionsByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != first.ID {
		t.Fatalf("sessions out of order: %+v", sessions)
	}

	for i, text := range []string{"hello", "hi there", "what is S3?"} {
		role := "user"
		if i == 1 {
			role = "assistant"
		}
		err := m.AppendMessage(ctx, &Message{SessionID: first.ID, Role: role, Text: text})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	msgs, err := m.MessagesBySession(ctx, first.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Text != "hello" || msgs[2].Text != "what is S3?" {
		t.Fatal("messages should keep append order")
	}

	if err := m.AppendMessage(ctx, &Message{SessionID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("append to missing session error = %v", err)
	}

	ended := time.Now()
	if err := m.EndSession(ctx, first.ID, ended); err != nil {
		t.Fatalf("end: %v", err)
	}
	got, err := m.SessionByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("session by id: %v", err)
	}
	if got.EndedAt == nil || got.Status != "ended" {
		t.Fatalf("session = %+v, want ended", got)
	}

	// Ending twice keeps the first end time.
	if err := m.EndSession(ctx, first.ID, ended.Add(time.Hour)); err != nil {
		t.Fatalf("second end: %v", err)
	}
	again, _ := m.SessionByID(ctx, first.ID)
	if !again.EndedAt.Equal(got.EndedAt.UTC()) {
		t.Fatal("second end should not move the end time")
	}

	if err := m.EndSession(ctx, "ghost", ended); !errors.Is(err, ErrNotFound) {
		t.Fatalf("end missing session error = %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	user := &User{Username: "demo", Email: "demo@example.com"}
	if err := m.CreateUser(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := m.UserByID(ctx, user.ID)
	got.Username = "mutated"

	fresh, _ := m.UserByID(ctx, user.ID)
	if fresh.Username != "demo" {
		t.Fatal("mutating a returned user should not affect the store")
	}
}
