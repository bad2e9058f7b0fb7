package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeInvalidDepartment indicates an unknown department code
	ErrorTypeInvalidDepartment ErrorType = "INVALID_DEPARTMENT"

	// ErrorTypeDuplicateToken indicates a token that is already queued
	ErrorTypeDuplicateToken ErrorType = "DUPLICATE_TOKEN"

	// ErrorTypeEmptyQueue indicates a dequeue against an empty department queue
	ErrorTypeEmptyQueue ErrorType = "EMPTY_QUEUE"

	// ErrorTypeInvalidTransition indicates an illegal patient state change
	ErrorTypeInvalidTransition ErrorType = "INVALID_TRANSITION"

	// ErrorTypeNotWaiting indicates an operation that requires a waiting patient
	ErrorTypeNotWaiting ErrorType = "NOT_WAITING"

	// ErrorTypePersistenceUnavailable indicates the durable store rejected the write
	ErrorTypePersistenceUnavailable ErrorType = "PERSISTENCE_UNAVAILABLE"

	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application error
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

// IsType reports whether err is an AppError of the given type
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// NewInvalidDepartmentError creates an error for an unknown department code
func NewInvalidDepartmentError(code string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidDepartment,
		Message: fmt.Sprintf("unknown department code %q", code),
	}
}

// NewDuplicateTokenError creates an error for a token already in the queue
func NewDuplicateTokenError(token string) *AppError {
	return &AppError{
		Type:    ErrorTypeDuplicateToken,
		Message: fmt.Sprintf("token %s is already queued", token),
	}
}

// NewEmptyQueueError creates an error for an empty department queue
func NewEmptyQueueError(department string) *AppError {
	return &AppError{
		Type:    ErrorTypeEmptyQueue,
		Message: fmt.Sprintf("no patients waiting in department %s", department),
	}
}

// NewInvalidTransitionError creates an error for an illegal state change
func NewInvalidTransitionError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidTransition,
		Message: message,
	}
}

// NewNotWaitingError creates an error for operations that require a waiting patient
func NewNotWaitingError(token string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotWaiting,
		Message: fmt.Sprintf("patient %s is not waiting", token),
	}
}

// NewPersistenceUnavailableError creates an error for a failed durable write
func NewPersistenceUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypePersistenceUnavailable,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
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
