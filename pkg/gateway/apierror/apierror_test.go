package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusFromType(t *testing.T) {
	cases := []struct {
		typ  Type
		want int
	}{
		{TypeInvalidRequest, http.StatusBadRequest},
		{TypeAuthentication, http.StatusUnauthorized},
		{TypePermission, http.StatusForbidden},
		{TypeNotFound, http.StatusNotFound},
		{TypeConflict, http.StatusBadRequest},
		{TypeUnavailable, http.StatusServiceUnavailable},
		{TypeAPI, http.StatusInternalServerError},
		{Type("unknown"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFromType(tc.typ); got != tc.want {
			t.Errorf("StatusFromType(%s) = %d, want %d", tc.typ, got, tc.want)
		}
	}
}

func TestFromErrorHidesUnknownDetails(t *testing.T) {
	canonical, status := FromError(errors.New("pq: password authentication failed"), "req_1")
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}
	if canonical.Message != "internal error" {
		t.Fatalf("message = %q, internal detail leaked", canonical.Message)
	}
	if canonical.RequestID != "req_1" {
		t.Fatalf("request id = %q", canonical.RequestID)
	}
}

func TestFromErrorPreservesCanonicalErrors(t *testing.T) {
	base := New(TypeNotFound, "session not found")
	wrapped := fmt.Errorf("handler: %w", base)

	canonical, status := FromError(wrapped, "req_2")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if canonical.Message != "session not found" || canonical.Type != TypeNotFound {
		t.Fatalf("canonical = %+v", canonical)
	}
	if canonical.RequestID != "req_2" {
		t.Fatalf("request id = %q", canonical.RequestID)
	}
	// The original must not be mutated.
	if base.RequestID != "" {
		t.Fatal("FromError mutated the source error")
	}
}

func TestFromErrorContextErrors(t *testing.T) {
	if _, status := FromError(context.DeadlineExceeded, ""); status != http.StatusGatewayTimeout {
		t.Fatalf("deadline status = %d", status)
	}
	if _, status := FromError(context.Canceled, ""); status != http.StatusRequestTimeout {
		t.Fatalf("canceled status = %d", status)
	}
}

func TestWriteEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, New(TypeAuthentication, "could not validate credentials"), "req_3")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var envelope Envelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error == nil || envelope.Error.Message != "could not validate credentials" {
		t.Fatalf("envelope = %+v", envelope)
	}
	if envelope.Error.RequestID != "req_3" {
		t.Fatalf("request id = %q", envelope.Error.RequestID)
	}
}
