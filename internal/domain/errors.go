package domain

import (
	"errors"
	"fmt"
)

// Application error codes
const (
	EINVALID   = "invalid"          // Request validation failure
	EFORBIDDEN = "forbidden"        // Actor may not perform the operation
	ENOTFOUND  = "not_found"        // Shop, wallet or entity absent
	EQUOTA     = "quota_exhausted"  // No base remaining and no extra balance
	EAMOUNT    = "invalid_amount"   // Non-positive credit amount
	ESCHEDULE  = "invalid_schedule" // Collision, past date or ineligible shop
	ECONFLICT  = "conflict"         // Serialization failure, safe to retry
	EINTERNAL  = "internal"         // Internal server error
)

// Error represents an application error with structured information.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "quota.reserve")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the first *Error in the chain, or EINTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != EINTERNAL {
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s with ID %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

// Forbidden creates a permission error.
func Forbidden(op, message string) *Error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: message}
}

// QuotaExhausted is returned when neither base allowance nor extra balance is left.
func QuotaExhausted(op string, resource Resource) *Error {
	return &Error{
		Code:    EQUOTA,
		Op:      op,
		Message: fmt.Sprintf("no %s quota available", resource.Label()),
	}
}

// InvalidAmount creates an amount error.
func InvalidAmount(op string, amount int) *Error {
	return &Error{
		Code:    EAMOUNT,
		Op:      op,
		Message: fmt.Sprintf("amount must be a positive integer, got %d", amount),
	}
}

// InvalidSchedule creates a scheduling error.
func InvalidSchedule(op, format string, args ...any) *Error {
	return Errorf(ESCHEDULE, op, format, args...)
}

// Conflict creates a concurrency conflict error wrapping the store failure.
func Conflict(err error, op, message string) *Error {
	return Wrap(err, ECONFLICT, op, message)
}

// Internal creates an internal error, wrapping the underlying error.
func Internal(err error, op, message string) *Error {
	return Wrap(err, EINTERNAL, op, message)
}
