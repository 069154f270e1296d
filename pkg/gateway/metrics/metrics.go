// Package metrics holds the Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Room metrics
	RoomsActive       prometheus.Gauge
	RoomParticipants  prometheus.Gauge
	DataMessagesTotal *prometheus.CounterVec

	// Session metrics
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Inference metrics
	InferenceTotal    *prometheus.CounterVec
	InferenceDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with all collectors registered on a private
// registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "cloudy"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "path"},
	)

	roomsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms with at least one participant",
		},
	)

	roomParticipants := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "room_participants",
			Help:      "Number of connected room participants",
		},
	)

	dataMessagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_messages_total",
			Help:      "Total data messages relayed through rooms",
		},
		[]string{"type"},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of assistant sessions",
		},
		[]string{"status"},
	)

	sessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Assistant session duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	inferenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_total",
			Help:      "Total inference calls by outcome",
		},
		[]string{"model", "kind", "outcome"},
	)

	inferenceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Inference call duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"model", "kind"},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		roomsActive,
		roomParticipants,
		dataMessagesTotal,
		sessionsTotal,
		sessionDuration,
		inferenceTotal,
		inferenceDuration,
	)

	return &Metrics{
		registry:          registry,
		RequestsTotal:     requestsTotal,
		RequestDuration:   requestDuration,
		RoomsActive:       roomsActive,
		RoomParticipants:  roomParticipants,
		DataMessagesTotal: dataMessagesTotal,
		SessionsTotal:     sessionsTotal,
		SessionDuration:   sessionDuration,
		InferenceTotal:    inferenceTotal,
		InferenceDuration: inferenceDuration,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDataMessage records one relayed data message.
func (m *Metrics) RecordDataMessage(msgType string) {
	m.DataMessagesTotal.WithLabelValues(msgType).Inc()
}

// RecordSessionEnd records a finished assistant session.
func (m *Metrics) RecordSessionEnd(status string, duration time.Duration) {
	m.SessionsTotal.WithLabelValues(status).Inc()
	m.SessionDuration.Observe(duration.Seconds())
}

// RecordInference records one inference call.
func (m *Metrics) RecordInference(model, kind, outcome string, duration time.Duration) {
	m.InferenceTotal.WithLabelValues(model, kind, outcome).Inc()
	m.InferenceDuration.WithLabelValues(model, kind).Observe(duration.Seconds())
}
