package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Pipeline errors
	ErrorTypeConversion          ErrorType = "CONVERSION"
	ErrorTypeUpstreamUnavailable ErrorType = "UPSTREAM_UNAVAILABLE"
	ErrorTypeValidationFailed    ErrorType = "VALIDATION_FAILED"
	ErrorTypePublishRejected     ErrorType = "PUBLISH_REJECTED"
	ErrorTypeStoreNotInitialized ErrorType = "STORE_NOT_INITIALIZED"
	ErrorTypeLogAppendFailed     ErrorType = "LOG_APPEND_FAILED"

	// Request errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"

	// Application errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// Infrastructure errors
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// CodeVersionConflict marks a version record commit that lost a compare-and-swap
const CodeVersionConflict = "version_conflict"

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether re-submitting the same event later may succeed.
func (e *AppError) Retryable() bool {
	switch e.Type {
	case ErrorTypeUpstreamUnavailable, ErrorTypeValidationFailed, ErrorTypePublishRejected,
		ErrorTypeTimeout, ErrorTypeUnavailable:
		return true
	}
	return false
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newAppError(errType ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// Constructor functions for the pipeline taxonomy

// NewConversionError creates an error for a malformed foreign topology
func NewConversionError(message string) *AppError {
	return newAppError(ErrorTypeConversion, http.StatusBadRequest, message).WithCode("conversion_error")
}

// NewUpstreamUnavailableError creates an error for an unreachable topology source
func NewUpstreamUnavailableError(source string, err error) *AppError {
	return newAppError(ErrorTypeUpstreamUnavailable, http.StatusBadRequest,
		fmt.Sprintf("topology source '%s' is unavailable", source)).
		WithCode("upstream_unavailable").
		WithCause(err)
}

// NewValidationFailedError creates an error for a document the schema validator refused
func NewValidationFailedError(message string) *AppError {
	return newAppError(ErrorTypeValidationFailed, http.StatusBadRequest, message).WithCode("validation_failed")
}

// NewPublishRejectedError creates an error for a publication the downstream did not acknowledge
func NewPublishRejectedError(reason string) *AppError {
	return newAppError(ErrorTypePublishRejected, http.StatusBadRequest, reason).WithCode("publish_rejected")
}

// NewStoreNotInitializedError creates the fatal bootstrap error
func NewStoreNotInitializedError() *AppError {
	return newAppError(ErrorTypeStoreNotInitialized, http.StatusUnauthorized, "No SDX Topology loaded").
		WithCode("store_not_initialized")
}

// NewLogAppendFailedError creates a non-fatal event log error
func NewLogAppendFailedError(eventName string, err error) *AppError {
	return newAppError(ErrorTypeLogAppendFailed, http.StatusInternalServerError,
		fmt.Sprintf("failed to append event '%s' to the event log", eventName)).
		WithCode("log_append_failed").
		WithCause(err)
}

// Constructor functions for common error types

// NewValidationError creates a request validation error
func NewValidationError(message string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewVersionConflictError reports a commit whose base record was replaced after it
// was read
func NewVersionConflictError(expected, stored int) *AppError {
	return NewConflictError(fmt.Sprintf("stored topology version %d no longer matches the committed base version %d", stored, expected)).
		WithCode(CodeVersionConflict).
		WithDetails(map[string]interface{}{"expected_version": expected, "stored_version": stored})
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(operation string) *AppError {
	return newAppError(ErrorTypeTimeout, http.StatusGatewayTimeout,
		fmt.Sprintf("operation '%s' timed out", operation))
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("service '%s' is unavailable", service))
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return newAppError(ErrorTypeDatabase, http.StatusInternalServerError,
		fmt.Sprintf("database operation '%s' failed", operation)).WithCause(err)
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return newAppError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service)).WithCause(err)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsStoreNotInitialized checks if an error reports a missing version record
func IsStoreNotInitialized(err error) bool {
	return IsType(err, ErrorTypeStoreNotInitialized)
}

// IsConversion checks if an error is a conversion error
func IsConversion(err error) bool {
	return IsType(err, ErrorTypeConversion)
}

// IsVersionConflict checks if an error reports a lost compare-and-swap on the version record
func IsVersionConflict(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeConflict && appErr.Code == CodeVersionConflict
}

// IsValidation checks if an error is a request validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}
