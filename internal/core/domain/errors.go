package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for unknown or expired map sessions.
	ErrSessionNotFound = errors.New("session not found")
	// ErrReplyPending is returned when a chat reply is still being produced.
	ErrReplyPending = errors.New("a reply is already pending")
	// ErrNotConfigured is returned when a collaborator has no credentials.
	ErrNotConfigured = errors.New("API key not configured")
	// ErrLayerNotFound is returned for unknown layer identifiers.
	ErrLayerNotFound = errors.New("layer not found")
	// ErrArchiveUnavailable is returned when no analysis store is wired.
	ErrArchiveUnavailable = errors.New("analysis archive unavailable")
)

// ValidationError reports input rejected before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// UpstreamError reports a failed call to an external service.
// Status is the upstream HTTP status, or 0 when the call never got a response.
type UpstreamError struct {
	Service string
	Status  int
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status %d): %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
