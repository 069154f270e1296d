// Package mw provides the gateway middleware chain.
package mw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cloudy-ai/cloudy/pkg/gateway/apierror"
	"github.com/cloudy-ai/cloudy/pkg/gateway/auth"
)

type ctxKeyRequestID struct{}

func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyRequestID{}).(string)
	return id, ok && id != ""
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID{}, id)
}

// RequestID assigns or propagates an X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = "req_" + randHex(10)
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// TokenVerifier verifies an API bearer token and returns the user id.
type TokenVerifier interface {
	VerifyAPIToken(token string) (string, error)
}

// RequireAuth rejects requests without a valid bearer token and attaches the
// principal to the request context.
func RequireAuth(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, _ := RequestIDFrom(r.Context())

		token, ok := auth.ParseBearer(r)
		if !ok {
			apierror.WriteStatus(w, &apierror.Error{
				Type:      apierror.TypeAuthentication,
				Message:   "missing bearer token",
				RequestID: reqID,
			}, http.StatusUnauthorized)
			return
		}
		userID, err := verifier.VerifyAPIToken(token)
		if err != nil {
			apierror.WriteStatus(w, &apierror.Error{
				Type:      apierror.TypeAuthentication,
				Message:   "could not validate credentials",
				RequestID: reqID,
			}, http.StatusUnauthorized)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), &auth.Principal{UserID: userID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Recover converts handler panics into opaque 500 responses.
func Recover(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				reqID, _ := RequestIDFrom(r.Context())
				logger.Error("handler panic", "request_id", reqID, "path", r.URL.Path, "panic", rec)
				apierror.WriteStatus(w, &apierror.Error{
					Type:      apierror.TypeAPI,
					Message:   "internal error",
					RequestID: reqID,
				}, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// AccessLog logs one line per request.
func AccessLog(logger *slog.Logger, next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := NewResponseWriter(w)
		next.ServeHTTP(rw, r)

		reqID, _ := RequestIDFrom(r.Context())
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.StatusCode,
			"bytes", rw.BytesWritten,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", reqID,
		)
	})
}

func randHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", n*2)
	}
	return hex.EncodeToString(buf)
}
