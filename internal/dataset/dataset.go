// Package dataset opens the fixed dataset queries run against and loads it
// from CSV.
//
// Three drivers are supported through database/sql: "sqlite3" (default,
// github.com/mattn/go-sqlite3), "postgres" (github.com/lib/pq) and "mysql"
// (github.com/go-sql-driver/mysql). The loader writes through a read-write
// handle; the executor only ever receives the handle from OpenReadOnly.
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Table is the table the dataset is loaded into.
const Table = "passengers"

// Open opens a read-write handle, used for loading.
func Open(driver, dsn string) (*sql.DB, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}
	return open(driver, dsn)
}

// OpenReadOnly opens the handle handed to the executor.
//
// For sqlite3 the DSN is rewritten into a URI with mode=ro and
// _query_only=true so that every pooled connection refuses writes. In-memory
// sqlite databases cannot be shared this way and are rejected. Postgres and
// MySQL rely on the executor's READ ONLY transactions.
func OpenReadOnly(driver, dsn string) (*sql.DB, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		ro, err := readOnlySQLiteDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = ro
	}
	return open(driver, dsn)
}

func open(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to dataset: %w", err)
	}

	return db, nil
}

func checkDriver(driver string) error {
	switch driver {
	case DriverSQLite, DriverPostgres, DriverMySQL:
		return nil
	default:
		return fmt.Errorf("unsupported dataset driver %q: must be one of %s, %s, %s",
			driver, DriverSQLite, DriverPostgres, DriverMySQL)
	}
}

// readOnlySQLiteDSN turns a sqlite path or file: URI into a read-only URI.
func readOnlySQLiteDSN(dsn string) (string, error) {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	if path == "" || path == ":memory:" || strings.Contains(rawQuery, "mode=memory") {
		return "", fmt.Errorf("in-memory sqlite dataset cannot be opened read-only from a separate handle")
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("parse dataset dsn: %w", err)
	}
	params.Set("mode", "ro")
	params.Set("_query_only", "true")

	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + params.Encode(), nil
}

// Count returns the number of rows in the dataset table.
func Count(ctx context.Context, db *sql.DB) (int64, error) {
	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+Table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", Table, err)
	}
	return n, nil
}
