package core

import (
	"errors"
	"fmt"
)

// Error represents a council failure surfaced to callers.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrConfiguration ErrorType = "configuration_error"
	ErrValidation    ErrorType = "validation_error"
	ErrGeneration    ErrorType = "generation_error"
	ErrSynthesis     ErrorType = "synthesis_error"
	ErrTranscription ErrorType = "transcription_error"
	ErrStorageQuota  ErrorType = "storage_quota_error"
)

// NewConfigurationError creates an error for missing or invalid credentials.
func NewConfigurationError(message string) *Error {
	return &Error{
		Type:    ErrConfiguration,
		Message: message,
	}
}

// NewValidationError creates a validation error for the given parameter.
func NewValidationError(message, param string) *Error {
	return &Error{
		Type:    ErrValidation,
		Message: message,
		Param:   param,
	}
}

// NewGenerationError wraps a dialogue generation failure.
func NewGenerationError(message string, cause error) *Error {
	return &Error{
		Type:    ErrGeneration,
		Message: message,
		Cause:   cause,
	}
}

// NewSynthesisError wraps a speech synthesis failure.
func NewSynthesisError(message string, cause error) *Error {
	return &Error{
		Type:    ErrSynthesis,
		Message: message,
		Cause:   cause,
	}
}

// NewTranscriptionError wraps a transcription failure.
func NewTranscriptionError(message string, cause error) *Error {
	return &Error{
		Type:    ErrTranscription,
		Message: message,
		Cause:   cause,
	}
}

// NewStorageQuotaError reports a persisted write rejected for size.
func NewStorageQuotaError(message string, cause error) *Error {
	return &Error{
		Type:    ErrStorageQuota,
		Message: message,
		Cause:   cause,
	}
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrGeneration, ErrSynthesis, ErrTranscription:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsType reports whether err is, or wraps, an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}
