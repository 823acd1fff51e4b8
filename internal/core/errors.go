package core

import (
	"fmt"
	"net/http"
)

// ErrorType classifies orchestrator failures.
type ErrorType string

const (
	// ErrorTypeValidation indicates unusable client input (4xx).
	ErrorTypeValidation ErrorType = "validation_error"
	// ErrorTypeTooLong indicates the message exceeded the length ceiling.
	ErrorTypeTooLong ErrorType = "too_long"
	// ErrorTypeRateLimited indicates the per-conversation burst ceiling was hit.
	ErrorTypeRateLimited ErrorType = "rate_limited"
	// ErrorTypeBudgetExceeded indicates the model-call budget was exhausted.
	ErrorTypeBudgetExceeded ErrorType = "budget_exceeded"
	// ErrorTypeUpstreamInvalid indicates the model returned unusable structured data.
	ErrorTypeUpstreamInvalid ErrorType = "upstream_invalid_response"
	// ErrorTypeUpstreamUnavailable indicates a timeout/network/auth failure calling the model.
	ErrorTypeUpstreamUnavailable ErrorType = "upstream_unavailable"
	// ErrorTypeNotFound indicates a missing conversation or turn.
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeAuthentication indicates a rejected credential.
	ErrorTypeAuthentication ErrorType = "authentication_error"
)

// OrchestratorError is the base error type for all orchestration failures.
// Nothing in this layer is fatal to the process: every failure path either
// returns a structured reply or one of these.
type OrchestratorError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	// Err holds the original error for debugging; never exposed to clients.
	Err error `json:"-"`
}

func (e *OrchestratorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status appropriate for this error.
func (e *OrchestratorError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeValidation, ErrorTypeTooLong:
		return http.StatusBadRequest
	case ErrorTypeRateLimited, ErrorTypeBudgetExceeded:
		return http.StatusTooManyRequests
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUpstreamInvalid, ErrorTypeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the wire shape used by the HTTP layer.
func (e *OrchestratorError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewValidationError creates a recoverable client-input error.
func NewValidationError(message string) *OrchestratorError {
	return &OrchestratorError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a missing-resource error.
func NewNotFoundError(message string) *OrchestratorError {
	return &OrchestratorError{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewUpstreamInvalidError signals that the model produced unusable output,
// such as an empty summary or unparseable JSON. The orchestrator surfaces
// this rather than fabricating content.
func NewUpstreamInvalidError(message string, err error) *OrchestratorError {
	return &OrchestratorError{
		Type:       ErrorTypeUpstreamInvalid,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// NewUpstreamUnavailableError signals a transport-level model failure.
// The turn is not retried automatically.
func NewUpstreamUnavailableError(message string, err error) *OrchestratorError {
	return &OrchestratorError{
		Type:       ErrorTypeUpstreamUnavailable,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}
