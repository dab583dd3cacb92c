package model

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors reported by the execution core.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an unknown query or execution identifier.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeValidation indicates the query violates the read-only policy.
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"

	// ErrCodeExecution indicates the data engine failed to run the query.
	ErrCodeExecution ErrorCode = "EXECUTION_FAILED"

	// ErrCodePoolSaturated indicates the async backlog is full.
	ErrCodePoolSaturated ErrorCode = "POOL_SATURATED"
)

// Error is the typed failure returned by every core operation.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description, surfaced to clients as-is.
	Message string

	// Err is the underlying cause, if any.
	Err error

	// Details contains additional context (e.g. "reason", "keyword").
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewQueryNotFound reports an unknown query identifier.
func NewQueryNotFound(queryID int64) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("query not found with id: %d", queryID),
		Details: map[string]string{"query_id": fmt.Sprintf("%d", queryID)},
	}
}

// NewExecutionNotFound reports an unknown async execution identifier.
func NewExecutionNotFound(executionID string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("async execution not found with id: %s", executionID),
		Details: map[string]string{"execution_id": executionID},
	}
}

// NewValidationError reports a read-only policy violation.
func NewValidationError(reason string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: "only SELECT queries are allowed: " + reason,
		Details: map[string]string{"reason": reason},
	}
}

// NewExecutionError wraps a data engine failure.
func NewExecutionError(err error) *Error {
	return &Error{
		Code:    ErrCodeExecution,
		Message: fmt.Sprintf("failed to execute query: %v", err),
		Err:     err,
	}
}

// NewPoolSaturated reports that an async submission was rejected.
func NewPoolSaturated(err error) *Error {
	return &Error{
		Code:    ErrCodePoolSaturated,
		Message: "async execution rejected: worker pool saturated",
		Err:     err,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is a NOT_FOUND error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsValidation returns true if err is a VALIDATION_FAILED error.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// IsExecution returns true if err is an EXECUTION_FAILED error.
func IsExecution(err error) bool {
	return CodeOf(err) == ErrCodeExecution
}

// IsPoolSaturated returns true if err is a POOL_SATURATED error.
func IsPoolSaturated(err error) bool {
	return CodeOf(err) == ErrCodePoolSaturated
}
