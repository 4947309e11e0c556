package label

import (
	"errors"
	"fmt"
)

// ProviderErrorKind classifies a failed provider call.
type ProviderErrorKind string

const (
	// KindNoResponse means the request never produced an HTTP response
	// (timeout, connection refused, DNS failure).
	KindNoResponse ProviderErrorKind = "no_response"

	// KindRejected means the provider answered with an error status and
	// a structured message.
	KindRejected ProviderErrorKind = "rejected"
)

// ProviderError represents a failed call to the label provider.
type ProviderError struct {
	Courier    Courier
	Kind       ProviderErrorKind
	Message    string
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s provider %s: %s: %v", e.Courier, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s provider %s: %s", e.Courier, e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for ProviderError by kind.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewProviderError creates a ProviderError.
func NewProviderError(courier Courier, kind ProviderErrorKind, message string) *ProviderError {
	return &ProviderError{Courier: courier, Kind: kind, Message: message}
}

// WithCause adds a cause to the error.
func (e *ProviderError) WithCause(err error) *ProviderError {
	e.Cause = err
	return e
}

// WithStatusCode adds the provider's HTTP status code.
func (e *ProviderError) WithStatusCode(code int) *ProviderError {
	e.StatusCode = code
	return e
}

// IsNoResponse reports whether err is a transport-level provider failure.
func IsNoResponse(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindNoResponse
}

// IsRejected reports whether the provider answered with an error status.
func IsRejected(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindRejected
}

// ValidationError means a required field is missing or malformed.
// Requests failing validation are rejected before any side effect.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a request validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Sentinel errors shared across the fulfillment pipeline.
var (
	// ErrCourierNotSupported indicates the requested courier has no
	// configured price table.
	ErrCourierNotSupported = errors.New("courier not supported")

	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
)
