package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/cloudy-ai/cloudy/pkg/gateway/apierror"
	"github.com/cloudy-ai/cloudy/pkg/gateway/sso"
	"github.com/cloudy-ai/cloudy/pkg/gateway/store"
)

// SSOLogin handles GET /v1/sso/login and redirects to the hosted sign-in
// page.
func (d *Deps) SSOLogin(w http.ResponseWriter, r *http.Request) {
	if d.SSO == nil {
		writeError(w, r, apierror.New(apierror.TypeUnavailable, "sso is not configured"))
		return
	}
	state := randState()
	url, err := d.SSO.LoginURL(state)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "cloudy_sso_state",
		Value:    state,
		Path:     "/v1/sso",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusFound)
}

// SSOCallback handles GET /v1/sso/callback. It exchanges the code, creates
// the local account on first sign-in, and returns a bearer token.
func (d *Deps) SSOCallback(w http.ResponseWriter, r *http.Request) {
	if d.SSO == nil {
		writeError(w, r, apierror.New(apierror.TypeUnavailable, "sso is not configured"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, r, apierror.New(apierror.TypeInvalidRequest, "missing code"))
		return
	}
	if cookie, err := r.Cookie("cloudy_sso_state"); err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeError(w, r, apierror.New(apierror.TypeAuthentication, "state mismatch"))
		return
	}

	identity, err := d.SSO.Exchange(r.Context(), code)
	if err != nil {
		d.Logger.Warn("sso code exchange failed", "error", err)
		writeError(w, r, apierror.New(apierror.TypeAuthentication, "sign-in failed"))
		return
	}

	user, err := d.findOrCreateSSOUser(r, identity)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, ttl, err := d.Tokens.IssueAPIToken(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d.Logger.Info("sso login", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   ttl,
		UserID:      user.ID,
	})
}

func (d *Deps) findOrCreateSSOUser(r *http.Request, identity *sso.Identity) (*store.User, error) {
	user, err := d.Store.UserByUsernameOrEmail(r.Context(), identity.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	username := identity.Email
	if at := strings.Index(username, "@"); at > 0 {
		username = username[:at]
	}
	user = &store.User{
		Username: username,
		Email:    identity.Email,
		FullName: strings.TrimSpace(identity.FirstName + " " + identity.LastName),
		// No local password for SSO accounts. The placeholder never matches
		// any bcrypt comparison.
		PasswordHash: "!sso:" + identity.ID,
	}
	if err := d.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Username taken by someone else; retry with a suffix.
			user.Username = username + "-" + randState()[:6]
			if err := d.Store.CreateUser(r.Context(), user); err != nil {
				return nil, err
			}
			return user, nil
		}
		return nil, err
	}
	return user, nil
}

func randState() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(buf)
}
