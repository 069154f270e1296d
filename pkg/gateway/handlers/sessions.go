package handlers

import (
	"net/http"
	"time"

	"github.com/cloudy-ai/cloudy/pkg/gateway/apierror"
	"github.com/cloudy-ai/cloudy/pkg/gateway/store"
)

type sessionInfo struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Config    store.SessionConfig `json:"config"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	EndedAt   *time.Time          `json:"ended_at,omitempty"`
}

type sessionMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	AudioData []byte    `json:"audioData,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionHistory struct {
	SessionID       string           `json:"session_id"`
	Messages        []sessionMessage `json:"messages"`
	TotalMessages   int              `json:"total_messages"`
	DurationSeconds *float64         `json:"duration_seconds,omitempty"`
}

// ListSessions handles GET /v1/sessions.
func (d *Deps) ListSessions(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessions, err := d.Store.SessionsByUser(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]sessionInfo, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionInfo{
			ID:        s.ID,
			UserID:    s.UserID,
			Config:    s.Config,
			Status:    s.Status,
			CreatedAt: s.StartedAt,
			EndedAt:   s.EndedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SessionHistory handles GET /v1/sessions/{id}/history.
func (d *Deps) SessionHistory(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessionID := r.PathValue("id")

	session, err := d.Store.SessionByID(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, storeError(err, "session not found", ""))
		return
	}
	if session.UserID != p.UserID {
		writeError(w, r, apierror.New(apierror.TypePermission, "cannot access another user's session"))
		return
	}

	messages, err := d.Store.MessagesBySession(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, storeError(err, "session not found", ""))
		return
	}

	history := sessionHistory{
		SessionID: sessionID,
		Messages:  make([]sessionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		history.Messages = append(history.Messages, sessionMessage{
			ID:        m.ID,
			Role:      m.Role,
			Text:      m.Text,
			AudioData: m.AudioData,
			CreatedAt: m.CreatedAt,
		})
	}
	history.TotalMessages = len(history.Messages)
	if session.EndedAt != nil {
		seconds := session.EndedAt.Sub(session.StartedAt).Seconds()
		history.DurationSeconds = &seconds
	}
	writeJSON(w, http.StatusOK, history)
}
