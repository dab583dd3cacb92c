// Package executor runs validated SELECT statements against the dataset and
// materializes the full result in memory.
//
// The executor does not trust the validator. Every statement runs inside a
// transaction opened with ReadOnly set, on a handle the dataset package opened
// read-only, and the transaction is always rolled back. Whether the engine
// enforces read-only or treats it as advisory is driver-dependent; any error
// it raises surfaces as EXECUTION_FAILED.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/queryexec/internal/metrics"
	"github.com/roach88/queryexec/internal/model"
)

// Executor runs a statement and returns every row it produced.
type Executor interface {
	Execute(ctx context.Context, sqlText string) (model.Result, error)
}

// SQLExecutor implements Executor over database/sql.
type SQLExecutor struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates an executor over db, which should be a read-only handle
// (see dataset.OpenReadOnly).
func New(db *sql.DB, logger *slog.Logger) *SQLExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLExecutor{db: db, logger: logger}
}

// Execute runs sqlText and returns all rows. No rows are returned on error.
func (e *SQLExecutor) Execute(ctx context.Context, sqlText string) (model.Result, error) {
	start := time.Now()
	result, err := e.execute(ctx, sqlText)
	metrics.ExecutorDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ExecutorRuns.WithLabelValues("error").Inc()
		e.logger.Error("query execution failed", "sql", sqlText, "error", err)
		return nil, model.NewExecutionError(err)
	}

	metrics.ExecutorRuns.WithLabelValues("ok").Inc()
	e.logger.Info("query executed", "rows", len(result), "duration", time.Since(start))
	return result, nil
}

func (e *SQLExecutor) execute(ctx context.Context, sqlText string) (model.Result, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read-only transaction: %w", err)
	}
	// Nothing is ever committed.
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAll(rows)
}

// scanAll materializes every row of rows. Returns an empty (non-nil) result
// when the cursor yields nothing.
func scanAll(rows *sql.Rows) (model.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := model.Result{}
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(result)+1, err)
		}

		row := make(model.Row, len(values))
		for i, v := range values {
			row[i] = normalize(v)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// normalize maps driver values onto the scalar set documented in model.
// Drivers hand text and numeric/decimal columns back as []byte, which is
// only valid until the next Scan.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return x
	}
}
