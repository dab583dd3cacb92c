package dataset

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

//go:embed passengers.csv
var samplePassengersCSV string

// SampleCSV returns a reader over the embedded passenger sample.
func SampleCSV() io.Reader {
	return strings.NewReader(samplePassengersCSV)
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS passengers (
	PassengerId INT PRIMARY KEY,
	Survived INT,
	Pclass INT,
	Name VARCHAR(255),
	Sex VARCHAR(10),
	Age DECIMAL(5,2),
	SibSp INT,
	Parch INT,
	Ticket VARCHAR(50),
	Fare DECIMAL(10,4),
	Cabin VARCHAR(50),
	Embarked VARCHAR(10)
)`

const insertColumns = "PassengerId, Survived, Pclass, Name, Sex, Age, SibSp, Parch, Ticket, Fare, Cabin, Embarked"

// Load (re)creates the passengers table from CSV. The first record is the
// header. Existing rows are replaced, all inside one transaction.
//
// Integer columns that fail to parse load as 0; empty Age and Fare load as
// NULL. Short records leave Cabin and Embarked NULL.
func Load(ctx context.Context, db *sql.DB, driver string, r io.Reader, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	records, err := readRecords(r)
	if err != nil {
		return 0, err
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return 0, fmt.Errorf("create %s table: %w", Table, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+Table); err != nil {
		return 0, fmt.Errorf("clear %s: %w", Table, err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)", Table, insertColumns, placeholders(driver, 12)))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, passengerArgs(rec)...); err != nil {
			return 0, fmt.Errorf("insert record %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load: %w", err)
	}

	logger.Info("dataset loaded", "table", Table, "rows", len(records))
	return len(records), nil
}

func readRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: missing header row")
	}
	return records[1:], nil
}

func passengerArgs(rec []string) []any {
	field := func(i int) string {
		if i < len(rec) {
			return rec[i]
		}
		return ""
	}
	optional := func(i int) any {
		if i < len(rec) {
			return rec[i]
		}
		return nil
	}

	return []any{
		parseInt(field(0)),
		parseInt(field(1)),
		parseInt(field(2)),
		field(3),
		field(4),
		parseDecimal(field(5)),
		parseInt(field(6)),
		parseInt(field(7)),
		field(8),
		parseDecimal(field(9)),
		optional(10),
		optional(11),
	}
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func parseDecimal(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

// placeholders returns n bind parameters in the driver's syntax.
func placeholders(driver string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		if driver == DriverPostgres {
			parts[i] = "$" + strconv.Itoa(i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}
