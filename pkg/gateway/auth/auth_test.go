package auth

import (
	"net/http"
	"testing"
	"time"
)

func TestAPITokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 30*time.Minute, time.Hour, nil)

	token, ttl, err := issuer.IssueAPIToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ttl != 1800 {
		t.Fatalf("ttl = %d, want 1800", ttl)
	}

	userID, err := issuer.VerifyAPIToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("user id = %q", userID)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	now := time.Now()
	clock := now
	issuer := NewTokenIssuer("test-secret", time.Minute, time.Minute, func() time.Time { return clock })

	token, _, err := issuer.IssueAPIToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	clock = now.Add(2 * time.Minute)
	if _, err := issuer.VerifyAPIToken(token); err == nil {
		t.Fatal("expired token should be rejected")
	}
}

func TestWrongSecretRejected(t *testing.T) {
	issuer := NewTokenIssuer("secret-a", time.Minute, time.Minute, nil)
	other := NewTokenIssuer("secret-b", time.Minute, time.Minute, nil)

	token, _, err := issuer.IssueAPIToken("user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.VerifyAPIToken(token); err == nil {
		t.Fatal("token signed with another secret should be rejected")
	}
}

func TestScopeSeparation(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute, time.Minute, nil)

	apiToken, _, err := issuer.IssueAPIToken("user-1")
	if err != nil {
		t.Fatalf("issue api: %v", err)
	}
	roomToken, ttl, err := issuer.IssueRoomToken("demo", "user-1")
	if err != nil {
		t.Fatalf("issue room: %v", err)
	}
	if ttl != 60 {
		t.Fatalf("room ttl = %d, want 60", ttl)
	}

	// API tokens do not grant rooms and vice versa.
	if _, err := issuer.VerifyRoomToken(apiToken); err == nil {
		t.Fatal("api token should not verify as a room token")
	}
	if _, err := issuer.VerifyAPIToken(roomToken); err == nil {
		t.Fatal("room token should not verify as an api token")
	}

	grant, err := issuer.VerifyRoomToken(roomToken)
	if err != nil {
		t.Fatalf("verify room: %v", err)
	}
	if grant.Room != "demo" || grant.Identity != "user-1" {
		t.Fatalf("grant = %+v", grant)
	}
}

func TestParseBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc123", "abc123", true},
		{"Bearer   abc123  ", "abc123", true},
		{"bearer abc123", "", false},
		{"Basic abc123", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := ParseBearer(r)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseBearer(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}
