// Package apperror provides structured error handling following RFC 7807 Problem Details.
// Transaction-engine failures and business errors share the AppError shape so the
// HTTP layer can render them uniformly.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Transaction demarcation errors
	CodeUnexpectedRollback = "UNEXPECTED_ROLLBACK"
	CodeScopeMisuse        = "SCOPE_MISUSE"
	CodeIllegalState       = "ILLEGAL_TRANSACTION_STATE"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeBusinessRule   = "BUSINESS_RULE_VIOLATION"
	CodeNotEnoughMoney = "NOT_ENOUGH_MONEY"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (scope ids, propagation, entity keys)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewUnexpectedRollback reports a commit request that was turned into a rollback
// because the physical transaction had been marked rollback-only.
func NewUnexpectedRollback(message string) *AppError {
	return &AppError{
		Code:       CodeUnexpectedRollback,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewResourceFault wraps a begin/commit/rollback failure of the underlying resource.
func NewResourceFault(op string, err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("transaction %s failed", op),
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": op},
		Err:        err,
	}
}

// NewScopeMisuse reports unbalanced or repeated scope closing (caller bug).
func NewScopeMisuse(message string) *AppError {
	return &AppError{
		Code:       CodeScopeMisuse,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewIllegalState reports a propagation request that cannot be satisfied
// in the current transaction state.
func NewIllegalState(message string) *AppError {
	return &AppError{
		Code:       CodeIllegalState,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether any AppError in the chain carries code.
// Joined errors are searched branch by branch.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if appErr, ok := err.(*AppError); ok && appErr.Code == code {
		return true
	}
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return HasCode(e.Unwrap(), code)
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsUnexpectedRollback checks if error is CodeUnexpectedRollback
func IsUnexpectedRollback(err error) bool {
	return HasCode(err, CodeUnexpectedRollback)
}

// IsResourceFault checks if error is a resource-level transaction failure
func IsResourceFault(err error) bool {
	return HasCode(err, CodeDatabase)
}

// IsScopeMisuse checks if error is CodeScopeMisuse
func IsScopeMisuse(err error) bool {
	return HasCode(err, CodeScopeMisuse)
}

// IsIllegalState checks if error is CodeIllegalState
func IsIllegalState(err error) bool {
	return HasCode(err, CodeIllegalState)
}
