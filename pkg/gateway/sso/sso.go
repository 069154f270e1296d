// Package sso implements the WorkOS-backed single sign-on flow. Callers are
// redirected to the hosted authorization page and come back with a code that
// gets exchanged for the WorkOS user.
package sso

import (
	"context"
	"fmt"

	"github.com/workos/workos-go/v6/pkg/usermanagement"
)

// Config wires the WorkOS application.
type Config struct {
	APIKey      string
	ClientID    string
	RedirectURI string
}

// Identity is the external user returned by a successful code exchange.
type Identity struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// Client drives the authorization-code flow.
type Client struct {
	clientID    string
	redirectURI string
}

// New configures the WorkOS SDK and returns a client. Returns nil when no API
// key is configured; callers treat a nil client as SSO disabled.
func New(cfg Config) *Client {
	if cfg.APIKey == "" || cfg.ClientID == "" {
		return nil
	}
	usermanagement.SetAPIKey(cfg.APIKey)
	return &Client{
		clientID:    cfg.ClientID,
		redirectURI: cfg.RedirectURI,
	}
}

// LoginURL builds the hosted authorization URL. state is round-tripped back
// to the redirect URI.
func (c *Client) LoginURL(state string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("sso is not configured")
	}
	u, err := usermanagement.GetAuthorizationURL(usermanagement.GetAuthorizationURLOpts{
		ClientID:    c.clientID,
		RedirectURI: c.redirectURI,
		Provider:    "authkit",
		State:       state,
	})
	if err != nil {
		return "", fmt.Errorf("build authorization url: %w", err)
	}
	return u.String(), nil
}

// Exchange trades the callback code for the authenticated identity.
func (c *Client) Exchange(ctx context.Context, code string) (*Identity, error) {
	if c == nil {
		return nil, fmt.Errorf("sso is not configured")
	}
	resp, err := usermanagement.AuthenticateWithCode(ctx, usermanagement.AuthenticateWithCodeOpts{
		ClientID: c.clientID,
		Code:     code,
	})
	if err != nil {
		return nil, fmt.Errorf("authenticate with code: %w", err)
	}
	return &Identity{
		ID:        resp.User.ID,
		Email:     resp.User.Email,
		FirstName: resp.User.FirstName,
		LastName:  resp.User.LastName,
	}, nil
}
