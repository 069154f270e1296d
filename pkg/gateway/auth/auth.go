// Package auth handles bearer parsing, request principals, and the HS256
// access tokens minted for both the REST API and room joins.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller attached to a request context.
type Principal struct {
	UserID string
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseBearer extracts the bearer token from an Authorization header.
func ParseBearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// RoomGrant is the verified content of a room access token.
type RoomGrant struct {
	Room     string
	Identity string
}

// TokenIssuer mints and verifies HS256 tokens.
type TokenIssuer struct {
	secret  []byte
	apiTTL  time.Duration
	roomTTL time.Duration
	now     func() time.Time
}

// NewTokenIssuer creates an issuer. now may be nil (wall clock).
func NewTokenIssuer(secret string, apiTTL, roomTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		secret:  []byte(secret),
		apiTTL:  apiTTL,
		roomTTL: roomTTL,
		now:     now,
	}
}

// IssueAPIToken mints a bearer token for the user. Returns the token and its
// lifetime in seconds.
func (i *TokenIssuer) IssueAPIToken(userID string) (string, int, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"scope": "api",
		"iat":   now.Unix(),
		"exp":   now.Add(i.apiTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign api token: %w", err)
	}
	return token, int(i.apiTTL.Seconds()), nil
}

// VerifyAPIToken verifies a bearer token and returns its user id.
func (i *TokenIssuer) VerifyAPIToken(token string) (string, error) {
	claims, err := i.verify(token, "api")
	if err != nil {
		return "", err
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return sub, nil
}

// IssueRoomToken mints a room access token granting the identity the right to
// join, publish, and subscribe in one room.
func (i *TokenIssuer) IssueRoomToken(room, identity string) (string, int, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub":   identity,
		"scope": "room",
		"room":  room,
		"iat":   now.Unix(),
		"exp":   now.Add(i.roomTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign room token: %w", err)
	}
	return token, int(i.roomTTL.Seconds()), nil
}

// VerifyRoomToken verifies a room access token.
func (i *TokenIssuer) VerifyRoomToken(token string) (RoomGrant, error) {
	claims, err := i.verify(token, "room")
	if err != nil {
		return RoomGrant{}, err
	}
	grant := RoomGrant{}
	grant.Identity, _ = claims["sub"].(string)
	grant.Room, _ = claims["room"].(string)
	if grant.Identity == "" || grant.Room == "" {
		return RoomGrant{}, fmt.Errorf("room token missing identity or room")
	}
	return grant, nil
}

func (i *TokenIssuer) verify(token, wantScope string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if scope, _ := claims["scope"].(string); scope != wantScope {
		return nil, fmt.Errorf("token scope %q does not grant %q", claims["scope"], wantScope)
	}
	return claims, nil
}
