package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeTimeout      ErrorType = "timeout"
	ErrorTypeAudit        ErrorType = "audit"
	ErrorTypeNotification ErrorType = "notification"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrTraceNotFound        = NewDomainError(ErrorTypeNotFound, "trace not found", nil)
	ErrIssueNotFound        = NewDomainError(ErrorTypeNotFound, "issue not found", nil)
	ErrNotificationNotFound = NewDomainError(ErrorTypeNotFound, "notification not found", nil)

	// Pipeline state errors. AlreadyRunning is recoverable: the trace is
	// unchanged and the caller should not retry.
	ErrAlreadyRunning = NewDomainError(ErrorTypeConflict, "analysis already running for this trace", nil)
	ErrTraceTerminal  = NewDomainError(ErrorTypeConflict, "trace analysis already finished", nil)

	// Analysis errors, terminal for the current run.
	ErrMalformedTrace  = NewDomainError(ErrorTypeValidation, "trace payload is malformed", nil)
	ErrAnalysisTimeout = NewDomainError(ErrorTypeTimeout, "analysis exceeded its time budget", nil)

	// Audit write failure is fatal to the current action: the action must
	// abort rather than leave state changed without a matching audit record.
	ErrAuditWriteFailure = NewDomainError(ErrorTypeAudit, "failed to write audit entry", nil)

	// Notification delivery failure is non-fatal and only ever logged.
	ErrNotificationDelivery = NewDomainError(ErrorTypeNotification, "failed to deliver notification", nil)

	// Authorization errors
	ErrNotTraceOwner = NewDomainError(ErrorTypeForbidden, "caller does not own this trace", nil)

	// Validation errors
	ErrInvalidInput    = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidSeverity = NewDomainError(ErrorTypeValidation, "invalid issue severity", nil)
	ErrInvalidStatus   = NewDomainError(ErrorTypeValidation, "invalid issue status", nil)

	// Internal Errors
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool {
	return GetErrorType(err) == ErrorTypeTimeout
}

// IsAuditError checks if an error is an audit write error
func IsAuditError(err error) bool {
	return GetErrorType(err) == ErrorTypeAudit
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
