package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/queryexec/internal/model"
)

// CreateQuery stores text and returns its new id. Blank text is rejected.
func (s *Store) CreateQuery(ctx context.Context, text string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("query text cannot be blank")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stored_queries (query, created_at) VALUES (?, ?)`,
		text, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert query: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read query id: %w", err)
	}
	return id, nil
}

// ListQueries returns all stored queries ordered by id.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ListQueries(ctx context.Context) ([]model.Query, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, created_at
		FROM stored_queries
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stored_queries: %w", err)
	}
	defer rows.Close()

	queries := []model.Query{}
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stored_queries: %w", err)
	}

	return queries, nil
}

// GetQuery returns a stored query, or a NOT_FOUND *model.Error.
func (s *Store) GetQuery(ctx context.Context, id int64) (model.Query, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, query, created_at
		FROM stored_queries
		WHERE id = ?
	`, id)

	q, err := scanQuery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Query{}, model.NewQueryNotFound(id)
	}
	return q, err
}

// GetQueryText returns the text of a stored query, or a NOT_FOUND
// *model.Error.
func (s *Store) GetQueryText(ctx context.Context, id int64) (string, error) {
	q, err := s.GetQuery(ctx, id)
	if err != nil {
		return "", err
	}
	return q.Text, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuery(row scanner) (model.Query, error) {
	var q model.Query
	var createdAt string

	if err := row.Scan(&q.ID, &q.Text, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Query{}, err
		}
		return model.Query{}, fmt.Errorf("scan stored query: %w", err)
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return model.Query{}, fmt.Errorf("parse created_at for query %d: %w", q.ID, err)
	}
	q.CreatedAt = t
	return q, nil
}
