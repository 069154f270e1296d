// Package apierror defines the canonical gateway error envelope and its HTTP
// status mapping.
package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Type categorizes gateway errors.
type Type string

const (
	TypeInvalidRequest Type = "invalid_request_error"
	TypeAuthentication Type = "authentication_error"
	TypePermission     Type = "permission_error"
	TypeNotFound       Type = "not_found_error"
	TypeConflict       Type = "conflict_error"
	TypeUnavailable    Type = "unavailable_error"
	TypeAPI            Type = "api_error"
)

// Error is the canonical gateway error.
type Error struct {
	Type      Type   `json:"type"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Envelope is the JSON error body.
type Envelope struct {
	Error *Error `json:"error"`
}

func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message}
}

// FromError maps any error to a canonical error plus HTTP status. Unknown
// errors become an opaque internal error so details do not leak.
func FromError(err error, requestID string) (*Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Type: TypeAPI, Message: "request timeout", RequestID: requestID}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Type: TypeAPI, Message: "request cancelled", Code: "cancelled", RequestID: requestID}, http.StatusRequestTimeout
	}

	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr != nil {
		out := *apiErr
		out.RequestID = requestID
		return &out, StatusFromType(apiErr.Type)
	}

	return &Error{Type: TypeAPI, Message: "internal error", RequestID: requestID}, http.StatusInternalServerError
}

// StatusFromType maps an error type to its HTTP status.
func StatusFromType(t Type) int {
	switch t {
	case TypeInvalidRequest:
		return http.StatusBadRequest
	case TypeAuthentication:
		return http.StatusUnauthorized
	case TypePermission:
		return http.StatusForbidden
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusBadRequest
	case TypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write writes err as a JSON envelope with its mapped status.
func Write(w http.ResponseWriter, err error, requestID string) {
	canonical, status := FromError(err, requestID)
	WriteStatus(w, canonical, status)
}

// WriteStatus writes a canonical error with an explicit status.
func WriteStatus(w http.ResponseWriter, e *Error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Error: e})
}
