package mw

import (
	"net/http"
	"strings"
)

var corsAllowedMethods = "GET, POST, PUT, OPTIONS"

var corsAllowedHeaders = strings.Join([]string{
	"Authorization",
	"Content-Type",
	"X-Request-ID",
}, ", ")

// CORS enforces the allowed-origin set. An empty set disables CORS entirely:
// preflights are denied and no CORS headers are emitted.
func CORS(allowed map[string]struct{}, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))

		if r.Method == http.MethodOptions && strings.TrimSpace(r.Header.Get("Access-Control-Request-Method")) != "" {
			if origin == "" || len(allowed) == 0 {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}
			if _, ok := allowed[origin]; !ok {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if origin != "" {
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
			}
		}
		next.ServeHTTP(w, r)
	})
}
