package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrInternal
)

// Scheduling validation error codes. These are recoverable, returned
// synchronously to the caller, and never reach the sync broadcaster.
const (
	ErrMissingFields ErrorCode = iota + 2000
	ErrOutsideCertPeriod
	ErrTimeSlotConflict
	ErrWeeklyQuotaExceeded
	ErrNoCertificationPeriod
	ErrInvalidTransition
)

// Outcome and transport error codes.
const (
	ErrDeactivatedInsteadOfDeleted ErrorCode = iota + 3000
	ErrTransportFailure
)

// CodeOf extracts the ErrorCode from an error chain, or ErrInternal when
// the chain carries no AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether the error chain carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

// Scheduling validation errors.

func MissingFields(fields ...string) *AppError {
	return &AppError{
		Code:    ErrMissingFields,
		Message: fmt.Sprintf("required fields missing: %v", fields),
	}
}

func OutsideCertPeriod(message string) *AppError {
	return &AppError{
		Code:    ErrOutsideCertPeriod,
		Message: message,
	}
}

func TimeSlotConflict(message string) *AppError {
	return &AppError{
		Code:    ErrTimeSlotConflict,
		Message: message,
	}
}

func WeeklyQuotaExceeded(message string) *AppError {
	return &AppError{
		Code:    ErrWeeklyQuotaExceeded,
		Message: message,
	}
}

func NoCertificationPeriod(message string) *AppError {
	return &AppError{
		Code:    ErrNoCertificationPeriod,
		Message: message,
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot transition visit from %s to %s", from, to),
	}
}

// DeactivatedInsteadOfDeleted signals a successful-but-different outcome:
// the visit had a saved clinical note, so it was deactivated rather than
// deleted and remains visible in listings.
func DeactivatedInsteadOfDeleted(message string) *AppError {
	return &AppError{
		Code:    ErrDeactivatedInsteadOfDeleted,
		Message: message,
	}
}

func TransportFailure(err error) *AppError {
	return &AppError{
		Code:    ErrTransportFailure,
		Message: "store call failed",
		Err:     err,
	}
}
