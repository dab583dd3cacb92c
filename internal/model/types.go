package model

import "time"

// Query is a registered SQL statement. Text is immutable once stored.
type Query struct {
	ID        int64     `json:"id"`
	Text      string    `json:"query"`
	CreatedAt time.Time `json:"-"`
}

// Row is one result row, columns in select-list order.
type Row []any

// Result is a fully materialized tabular result.
//
// Results handed out by the cache are shared between callers and must be
// treated as read-only.
type Result []Row

// ExecutionStatus is the lifecycle state of an async execution.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "PENDING"
	StatusRunning   ExecutionStatus = "RUNNING"
	StatusCompleted ExecutionStatus = "COMPLETED"
	StatusFailed    ExecutionStatus = "FAILED"
)

// IsTerminal reports whether no further transitions can occur.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Execution is the pollable status object of one async execution.
//
// Result is non-nil iff Status is COMPLETED; ErrorMessage is non-nil iff
// Status is FAILED. Both serialize as null otherwise.
type Execution struct {
	ExecutionID  string          `json:"executionId"`
	QueryID      int64           `json:"-"`
	Status       ExecutionStatus `json:"status"`
	Result       Result          `json:"result"`
	ErrorMessage *string         `json:"errorMessage"`
}

// Pending returns a fresh PENDING execution.
func Pending(executionID string, queryID int64) Execution {
	return Execution{ExecutionID: executionID, QueryID: queryID, Status: StatusPending}
}

// Running returns e moved to RUNNING.
func (e Execution) Running() Execution {
	e.Status = StatusRunning
	return e
}

// Completed returns e moved to COMPLETED with the given result.
func (e Execution) Completed(result Result) Execution {
	if result == nil {
		result = Result{}
	}
	e.Status = StatusCompleted
	e.Result = result
	e.ErrorMessage = nil
	return e
}

// Failed returns e moved to FAILED with the given message.
func (e Execution) Failed(message string) Execution {
	e.Status = StatusFailed
	e.Result = nil
	e.ErrorMessage = &message
	return e
}
