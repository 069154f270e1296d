// Package server assembles the gateway HTTP server: routes, middleware chain,
// and graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudy-ai/cloudy/pkg/gateway/handlers"
	"github.com/cloudy-ai/cloudy/pkg/gateway/mw"
)

// Server is the assembled gateway.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	grace      time.Duration
}

// New builds the gateway server from its handler dependencies.
func New(d *handlers.Deps) *Server {
	mux := http.NewServeMux()

	// Public routes.
	mux.HandleFunc("POST /v1/users/register", d.Register)
	mux.HandleFunc("POST /v1/users/login", d.Login)
	mux.HandleFunc("GET /v1/health", d.Health)
	mux.Handle("GET /v1/metrics", d.Metrics.Handler())
	mux.HandleFunc("GET /v1/sso/login", d.SSOLogin)
	mux.HandleFunc("GET /v1/sso/callback", d.SSOCallback)

	// The WS endpoint authenticates with the room token in the join frame,
	// not a bearer header.
	mux.HandleFunc("GET /v1/rooms/ws", d.RoomWS)

	// Authenticated routes.
	authed := func(h http.HandlerFunc) http.Handler {
		return mw.RequireAuth(d.Tokens, h)
	}
	mux.Handle("GET /v1/users/{id}/profile", authed(d.GetProfile))
	mux.Handle("PUT /v1/users/{id}/profile", authed(d.UpdateProfile))
	mux.Handle("GET /v1/sessions", authed(d.ListSessions))
	mux.Handle("GET /v1/sessions/{id}/history", authed(d.SessionHistory))
	mux.Handle("POST /v1/rooms", authed(d.CreateRoom))
	mux.Handle("POST /v1/billing/checkout", authed(d.CreateCheckout))

	var handler http.Handler = mux
	handler = requestMetrics(d, handler)
	handler = mw.CORS(d.Config.CORSAllowedOrigins, handler)
	handler = mw.Recover(d.Logger, handler)
	handler = mw.AccessLog(d.Logger, handler)
	handler = mw.RequestID(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              d.Config.Addr,
			Handler:           handler,
			ReadHeaderTimeout: d.Config.ReadHeaderTimeout,
		},
		logger: d.Logger,
		grace:  d.Config.ShutdownGracePeriod,
	}
}

// Handler returns the assembled handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then drains with the configured grace
// period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "grace", s.grace.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("graceful shutdown incomplete, closing", "error", err)
		_ = s.httpServer.Close()
	}
	return <-errCh
}

// requestMetrics records one observation per HTTP request. The WS endpoint is
// skipped; its connection lifetime would distort the duration histogram.
func requestMetrics(d *handlers.Deps, next http.Handler) http.Handler {
	if d.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/rooms/ws" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rw := mw.NewResponseWriter(w)
		next.ServeHTTP(rw, r)
		d.Metrics.RecordRequest(r.Method, r.URL.Path, strconv.Itoa(rw.StatusCode), time.Since(start))
	})
}
