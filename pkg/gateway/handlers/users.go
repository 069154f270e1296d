package handlers

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cloudy-ai/cloudy/pkg/gateway/apierror"
	"github.com/cloudy-ai/cloudy/pkg/gateway/store"
)

const minPasswordLength = 8

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	UserID      string `json:"user_id"`
}

type userProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `json:"is_active"`
}

func profileFromUser(u *store.User) userProfile {
	return userProfile{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		IsActive:  u.IsActive,
	}
}

// Register handles POST /v1/users/register.
func (d *Deps) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" {
		writeError(w, r, apierror.New(apierror.TypeInvalidRequest, "username is required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, r, apierror.New(apierror.TypeInvalidRequest, "a valid email is required"))
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, r, apierror.New(apierror.TypeInvalidRequest, "password must be at least 8 characters"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user := &store.User{
		Username:     req.Username,
		Email:        req.Email,
		FullName:     strings.TrimSpace(req.FullName),
		PasswordHash: string(hash),
	}
	if err := d.Store.CreateUser(r.Context(), user); err != nil {
		writeError(w, r, storeError(err, "user not found", "username or email already registered"))
		return
	}
	d.Logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	writeJSON(w, http.StatusCreated, profileFromUser(user))
}

// Login handles POST /v1/users/login.
func (d *Deps) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	invalid := apierror.New(apierror.TypeAuthentication, "invalid username or password")

	user, err := d.Store.UserByUsernameOrEmail(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		writeError(w, r, invalid)
		return
	}
	if !user.IsActive {
		writeError(w, r, apierror.New(apierror.TypeAuthentication, "account is disabled"))
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, r, invalid)
		return
	}

	token, ttl, err := d.Tokens.IssueAPIToken(user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d.Logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   ttl,
		UserID:      user.ID,
	})
}

// GetProfile handles GET /v1/users/{id}/profile. Users may only read their
// own profile.
func (d *Deps) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := r.PathValue("id")
	if userID != p.UserID {
		writeError(w, r, apierror.New(apierror.TypePermission, "cannot access another user's profile"))
		return
	}
	user, err := d.Store.UserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, storeError(err, "user not found", ""))
		return
	}
	writeJSON(w, http.StatusOK, profileFromUser(user))
}

// UpdateProfile handles PUT /v1/users/{id}/profile.
func (d *Deps) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID := r.PathValue("id")
	if userID != p.UserID {
		writeError(w, r, apierror.New(apierror.TypePermission, "cannot update another user's profile"))
		return
	}

	var req struct {
		Email    *string `json:"email"`
		FullName *string `json:"full_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Email != nil {
		trimmed := strings.TrimSpace(*req.Email)
		if _, err := mail.ParseAddress(trimmed); err != nil {
			writeError(w, r, apierror.New(apierror.TypeInvalidRequest, "a valid email is required"))
			return
		}
		req.Email = &trimmed
	}

	user, err := d.Store.UpdateUserProfile(r.Context(), userID, store.ProfileUpdate{
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(w, r, storeError(err, "user not found", "email already in use"))
		return
	}
	writeJSON(w, http.StatusOK, profileFromUser(user))
}
