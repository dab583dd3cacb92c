// Package model defines the types shared by the query execution core and its
// collaborators: stored queries, tabular results, async execution status
// objects, and the error taxonomy every layer reports through.
//
// # Result Shape
//
// A Result is an ordered sequence of rows, each row an ordered sequence of
// scalar values. Column names are not carried. Values are normalized by the
// executor to one of int64, float64, string, bool, time.Time or nil.
//
// # Error Taxonomy
//
//   - NOT_FOUND: unknown query or execution identifier
//   - VALIDATION_FAILED: read-only policy violation (carries the reason)
//   - EXECUTION_FAILED: data engine failure (carries the engine message)
//   - POOL_SATURATED: async backlog is full
//
// Use the Is* helpers rather than comparing codes directly; they unwrap.
package model
