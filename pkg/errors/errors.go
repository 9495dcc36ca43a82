package errors

import (
	"fmt"
)

// ErrorType represents different types of errors in the subsystem
type ErrorType string

const (
	// ErrorTypeIdentity indicates an identity fetch or persistence failure
	ErrorTypeIdentity ErrorType = "IDENTITY"

	// ErrorTypeStorage indicates a local state store read/write failure
	ErrorTypeStorage ErrorType = "STORAGE"

	// ErrorTypeTransport indicates a delivery failure
	ErrorTypeTransport ErrorType = "TRANSPORT"

	// ErrorTypeValidation indicates a malformed event or payload
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents a subsystem error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewIdentityError creates a new identity error
func NewIdentityError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeIdentity,
		Message: message,
		Err:     err,
	}
}

// NewStorageError creates a new storage error
func NewStorageError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeStorage,
		Message: message,
		Err:     err,
	}
}

// NewTransportError creates a new transport error
func NewTransportError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}
