package cloudy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestConnectWithRetryEventuallySucceeds(t *testing.T) {
	inner := &fakeGateway{frames: make(chan any, 32)}
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		inner.handle(w, r)
	}))
	defer server.Close()

	c := NewRoomClient(testLogger())
	err := c.ConnectWithRetry(context.Background(), RoomConfig{
		ServerURL: server.URL,
		Token:     "tok",
		RoomName:  "demo",
		Identity:  "user-1",
	}, RetryPolicy{MaxAttempts: 4, BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("connect with retry: %v", err)
	}
	defer c.Disconnect()

	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
	if !c.GetState().IsConnected {
		t.Fatal("client should be connected")
	}
}

func TestConnectWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewRoomClient(testLogger())
	err := c.ConnectWithRetry(context.Background(), RoomConfig{
		ServerURL: server.URL,
		Token:     "tok",
		RoomName:  "demo",
	}, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})
	if !IsKind(err, ErrConnection) {
		t.Fatalf("error = %v, want connection error", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestConnectWithRetryHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewRoomClient(testLogger())
	err := c.ConnectWithRetry(ctx, RoomConfig{
		ServerURL: server.URL,
		Token:     "tok",
		RoomName:  "demo",
	}, RetryPolicy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("expected an error with a cancelled context")
	}
}
