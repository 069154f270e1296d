// Package handlers implements the gateway HTTP and WebSocket endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudy-ai/cloudy/pkg/gateway/apierror"
	"github.com/cloudy-ai/cloudy/pkg/gateway/auth"
	"github.com/cloudy-ai/cloudy/pkg/gateway/billing"
	"github.com/cloudy-ai/cloudy/pkg/gateway/config"
	"github.com/cloudy-ai/cloudy/pkg/gateway/metrics"
	"github.com/cloudy-ai/cloudy/pkg/gateway/mw"
	"github.com/cloudy-ai/cloudy/pkg/gateway/room"
	"github.com/cloudy-ai/cloudy/pkg/gateway/sso"
	"github.com/cloudy-ai/cloudy/pkg/gateway/store"
)

const maxRequestBody = 1 << 20 // JSON endpoints only; the WS path has its own limit

// Deps carries everything the handlers need. All fields are injected; nothing
// here reaches for globals.
type Deps struct {
	Logger    *slog.Logger
	Store     store.Store
	Tokens    *auth.TokenIssuer
	Hub       *room.Hub
	Agent     *room.Agent
	Billing   *billing.Client
	SSO       *sso.Client
	Metrics   *metrics.Metrics
	Config    config.Config
	StartedAt time.Time
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		return apierror.New(apierror.TypeInvalidRequest, "invalid JSON body")
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	apierror.Write(w, err, reqID)
}

func principal(r *http.Request) (*auth.Principal, error) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		return nil, apierror.New(apierror.TypeAuthentication, "not authenticated")
	}
	return p, nil
}

func storeError(err error, notFoundMsg, conflictMsg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apierror.New(apierror.TypeNotFound, notFoundMsg)
	case errors.Is(err, store.ErrConflict):
		return apierror.New(apierror.TypeConflict, conflictMsg)
	default:
		return err
	}
}
