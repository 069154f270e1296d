package cloudy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// APIClient is a bearer-token-authenticated client for the Cloudy gateway
// REST API. It is stateless except for the held token: login stores it, and
// logout or a 401 response clears it.
//
// The token is plain mutable state guarded by a mutex; a login racing a
// logout can observe either outcome, which is acceptable for the single-user
// usage model.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	token  string
	userID string
}

// APIClientOption customizes an APIClient.
type APIClientOption func(*APIClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) APIClientOption {
	return func(c *APIClient) { c.httpClient = hc }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) APIClientOption {
	return func(c *APIClient) { c.logger = logger }
}

// NewAPIClient creates a client for the gateway at baseURL.
func NewAPIClient(baseURL string, opts ...APIClientOption) *APIClient {
	c := &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}
	return c
}

// IsAuthenticated reports whether a bearer token is held.
func (c *APIClient) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != ""
}

// UserID returns the authenticated user id, when known.
func (c *APIClient) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Logout clears the held token.
func (c *APIClient) Logout() {
	c.mu.Lock()
	c.token = ""
	c.userID = ""
	c.mu.Unlock()
}

// RegisterUser creates a new account.
func (c *APIClient) RegisterUser(ctx context.Context, req RegisterRequest) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodPost, "/v1/users/register", req, &profile, false); err != nil {
		return nil, err
	}
	return &profile, nil
}

// LoginUser authenticates and stores the returned bearer token.
func (c *APIClient) LoginUser(ctx context.Context, username, password string) (*TokenResponse, error) {
	var token struct {
		TokenResponse
		UserID string `json:"user_id"`
	}
	err := c.do(ctx, http.MethodPost, "/v1/users/login", LoginRequest{Username: username, Password: password}, &token, false)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = token.AccessToken
	c.userID = token.UserID
	c.mu.Unlock()
	return &token.TokenResponse, nil
}

// GetUserProfile fetches a user profile. Users may only read their own.
func (c *APIClient) GetUserProfile(ctx context.Context, userID string) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+userID+"/profile", nil, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateUserProfile updates the mutable profile fields.
func (c *APIClient) UpdateUserProfile(ctx context.Context, userID string, update ProfileUpdate) (*UserProfile, error) {
	var profile UserProfile
	if err := c.do(ctx, http.MethodPut, "/v1/users/"+userID+"/profile", update, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListSessions lists the authenticated user's sessions.
func (c *APIClient) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	var sessions []SessionInfo
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &sessions, true); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSessionHistory fetches the ordered conversation history of a session.
func (c *APIClient) GetSessionHistory(ctx context.Context, sessionID string) (*SessionHistory, error) {
	var history SessionHistory
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/history", nil, &history, true); err != nil {
		return nil, err
	}
	return &history, nil
}

// CreateRoom asks the gateway for a room and an access token to join it.
func (c *APIClient) CreateRoom(ctx context.Context, roomName string) (*RoomGrant, error) {
	body := map[string]string{"room_name": roomName}
	var grant RoomGrant
	if err := c.do(ctx, http.MethodPost, "/v1/rooms", body, &grant, true); err != nil {
		return nil, err
	}
	return &grant, nil
}

// CreateCheckoutSession starts a billing checkout for the named plan. The
// gateway derives the redirect URLs from its own public URL.
func (c *APIClient) CreateCheckoutSession(ctx context.Context, plan string) (*CheckoutSession, error) {
	body := map[string]string{"plan": plan}
	var checkout CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/billing/checkout", body, &checkout, true); err != nil {
		return nil, err
	}
	return &checkout, nil
}

// HealthCheck fetches the gateway health report. Unauthenticated.
func (c *APIClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	var health HealthStatus
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &health, false); err != nil {
		return nil, err
	}
	return &health, nil
}

// Metrics fetches the gateway metrics exposition. Unauthenticated.
func (c *APIClient) Metrics(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/metrics", nil)
	if err != nil {
		return "", fmt.Errorf("build metrics request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", NewRequestError("metrics request failed", 0)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", NewRequestError("metrics request failed", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read metrics body: %w", err)
	}
	return string(raw), nil
}

// do issues one request. Authenticated calls with no stored token fail with a
// no-token error before any network activity; a 401 clears the stored token.
func (c *APIClient) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var token string
	if authed {
		c.mu.Lock()
		token = c.token
		c.mu.Unlock()
		if token == "" {
			return NewNoTokenError(method + " " + path)
		}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Kind: ErrRequest, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.mu.Lock()
		c.token = ""
		c.userID = ""
		c.mu.Unlock()
		c.logger.Warn("bearer token rejected; cleared", "path", path)
		return NewAuthenticationError(serverDetail(resp.Body, "token rejected or expired"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewRequestError(serverDetail(resp.Body, fmt.Sprintf("request failed with status %d", resp.StatusCode)), resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// serverDetail extracts the gateway error detail when present, else falls
// back to the supplied message.
func serverDetail(body io.Reader, fallback string) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err == nil && strings.TrimSpace(envelope.Error.Message) != "" {
		return envelope.Error.Message
	}
	return fallback
}
