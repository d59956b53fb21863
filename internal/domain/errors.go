// Package domain defines error types shared by the session and admin packages.
package domain

import "fmt"

// OperationError is a custom error type for operation failures
type OperationError struct {
	Operation string // The operation that failed (e.g., "session-save")
	Message   string // Human-readable error message
	Cause     error  // Underlying error
}

func (e *OperationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %s (%v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// NotFoundError indicates a package, file or record was not found
type NotFoundError struct {
	Type       string // "package", "file", ...
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.Identifier)
}

// ValidationError indicates input validation failed.
// Reason is a stable machine-readable code, Message is shown to the viewer.
type ValidationError struct {
	Field   string
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// NewOperationError creates a new OperationError
func NewOperationError(operation, message string, cause error) *OperationError {
	return &OperationError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(typ, identifier string) *NotFoundError {
	return &NotFoundError{
		Type:       typ,
		Identifier: identifier,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, reason, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Reason:  reason,
		Message: message,
	}
}
