package errors

import (
	"errors"
	"fmt"
)

// RetrievalError is the structured error type for the retrieval engine.
// It provides context for error handling, logging, and HTTP status mapping.
type RetrievalError struct {
	// Code is the unique error code (e.g., "ERR_402_QUERY_EMPTY").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Network, Validation, Internal).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *RetrievalError) Is(target error) bool {
	if t, ok := target.(*RetrievalError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RetrievalError) WithDetail(key, value string) *RetrievalError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new RetrievalError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RetrievalError {
	return &RetrievalError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RetrievalError from an existing error.
func Wrap(code string, err error) *RetrievalError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
// Surfaced to callers as service-unavailable, never retried automatically.
func ConfigError(message string, cause error) *RetrievalError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *RetrievalError {
	return New(ErrCodeInvalidInput, message, cause)
}

// TotalRetrievalFailure creates the error surfaced when both adapters fail.
func TotalRetrievalFailure(cause error) *RetrievalError {
	return New(ErrCodeRetrievalFailed, "all retrieval adapters failed", cause)
}

// CodeOf returns the error code of err if it is a RetrievalError,
// or ErrCodeInternal otherwise.
func CodeOf(err error) string {
	var re *RetrievalError
	if errors.As(err, &re) {
		return re.Code
	}
	return ErrCodeInternal
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re) && re.Category == CategoryConfig
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re) && re.Category == CategoryValidation
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re) && re.Retryable
}
