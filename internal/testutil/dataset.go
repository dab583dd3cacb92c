package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/queryexec/internal/dataset"
)

// NewDataset loads the embedded passenger sample into a sqlite file under
// t.TempDir() and returns its path.
func NewDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.db")

	db, err := dataset.Open(dataset.DriverSQLite, path)
	if err != nil {
		t.Fatalf("dataset.Open() failed: %v", err)
	}
	defer db.Close()

	if _, err := dataset.Load(context.Background(), db, dataset.DriverSQLite, dataset.SampleCSV(), nil); err != nil {
		t.Fatalf("dataset.Load() failed: %v", err)
	}
	return path
}

// OpenDataset returns a read-only handle over a freshly loaded sample
// dataset. The handle is closed on test cleanup.
func OpenDataset(t *testing.T) *sql.DB {
	t.Helper()
	db, err := dataset.OpenReadOnly(dataset.DriverSQLite, NewDataset(t))
	if err != nil {
		t.Fatalf("dataset.OpenReadOnly() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
