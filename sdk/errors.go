package cloudy

import "fmt"

// Error is the canonical client-side error for the Cloudy SDK.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	// Status is the HTTP status that produced the error, when one exists.
	Status int   `json:"status,omitempty"`
	Cause  error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ErrorKind categorizes SDK errors.
type ErrorKind string

const (
	// ErrConnection means the room service was unreachable or rejected the
	// connection attempt.
	ErrConnection ErrorKind = "connection_error"
	// ErrMediaAcquisition means a device or permission request was denied.
	ErrMediaAcquisition ErrorKind = "media_acquisition_error"
	// ErrNotConnected means an operation requires an active room connection.
	ErrNotConnected ErrorKind = "not_connected_error"
	// ErrAuthentication means the bearer token was rejected or has expired.
	ErrAuthentication ErrorKind = "authentication_error"
	// ErrNoToken means an authenticated call was attempted with no credential.
	ErrNoToken ErrorKind = "no_token_error"
	// ErrRequest is a generic non-success REST response.
	ErrRequest ErrorKind = "request_error"
)

// NewConnectionError creates a connection error.
func NewConnectionError(message string, cause error) *Error {
	return &Error{Kind: ErrConnection, Message: message, Cause: cause}
}

// NewMediaAcquisitionError creates a media acquisition error.
func NewMediaAcquisitionError(message string, cause error) *Error {
	return &Error{Kind: ErrMediaAcquisition, Message: message, Cause: cause}
}

// NewNotConnectedError creates a not-connected error.
func NewNotConnectedError(operation string) *Error {
	return &Error{Kind: ErrNotConnected, Message: fmt.Sprintf("%s requires an active room connection", operation)}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Kind: ErrAuthentication, Message: message, Status: 401}
}

// NewNoTokenError creates a no-token error.
func NewNoTokenError(operation string) *Error {
	return &Error{Kind: ErrNoToken, Message: fmt.Sprintf("%s requires a bearer token; call LoginUser first", operation)}
}

// NewRequestError creates a generic request error.
func NewRequestError(message string, status int) *Error {
	return &Error{Kind: ErrRequest, Message: message, Status: status}
}

// IsKind reports whether err is an SDK *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
