package handlers

import (
	"net/http"
	"time"
)

type healthStatus struct {
	Status        string    `json:"status"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	Timestamp     time.Time `json:"timestamp"`
}

// Health handles GET /v1/health.
func (d *Deps) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthStatus{
		Status:        "healthy",
		Version:       d.Config.Version,
		UptimeSeconds: time.Since(d.StartedAt).Seconds(),
		Timestamp:     time.Now().UTC(),
	})
}
