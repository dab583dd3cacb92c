package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/queryexec/internal/config"
	"github.com/roach88/queryexec/internal/dataset"
	"github.com/roach88/queryexec/internal/executor"
	"github.com/roach88/queryexec/internal/service"
	"github.com/roach88/queryexec/internal/store"
	"github.com/roach88/queryexec/internal/workerpool"
)

// app is the fully wired in-process service shared by serve and query.
type app struct {
	store  *store.Store
	data   *sql.DB
	pool   *workerpool.Pool
	svc    *service.Service
	logger *slog.Logger

	datasetRows int64 // -1 if the dataset could not be counted
}

// openApp opens the query store and dataset, optionally (re)loading the
// dataset first, and wires the façade over them.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if cfg.Dataset.LoadOnStart {
		if _, err := loadDataset(ctx, cfg.Dataset, cfg.Dataset.CSV, logger); err != nil {
			return nil, err
		}
	}

	data, err := dataset.OpenReadOnly(cfg.Dataset.Driver, cfg.Dataset.DSN)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	logger.Debug("opening query store", "path", cfg.Store.Path)
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		data.Close()
		return nil, fmt.Errorf("open query store: %w", err)
	}

	rows, err := dataset.Count(ctx, data)
	if err != nil {
		// Queries against a missing dataset fail at execution time instead.
		logger.Warn("dataset not readable, run the load command", "dsn", cfg.Dataset.DSN, "error", err)
		rows = -1
	} else {
		logger.Info("dataset ready", "table", dataset.Table, "rows", rows)
	}

	pool, err := workerpool.New(cfg.Pool.Worker(), logger)
	if err != nil {
		st.Close()
		data.Close()
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	svc := service.New(st, executor.New(data, logger), pool, service.WithLogger(logger))

	return &app{store: st, data: data, pool: pool, svc: svc, logger: logger, datasetRows: rows}, nil
}

// Close drains the worker pool for up to timeout, then closes the store
// and the dataset.
func (a *app) Close(timeout time.Duration) error {
	var errs []error
	if err := a.pool.Close(timeout); err != nil {
		errs = append(errs, fmt.Errorf("close worker pool: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close query store: %w", err))
	}
	if err := a.data.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close dataset: %w", err))
	}
	return errors.Join(errs...)
}

// loadDataset replaces the passengers table with the rows of csvPath, or
// the embedded sample when csvPath is empty.
func loadDataset(ctx context.Context, cfg config.DatasetConfig, csvPath string, logger *slog.Logger) (int, error) {
	var r io.Reader = dataset.SampleCSV()
	source := "embedded sample"
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return 0, fmt.Errorf("open csv: %w", err)
		}
		defer f.Close()
		r = f
		source = csvPath
	}

	db, err := dataset.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return 0, fmt.Errorf("open dataset: %w", err)
	}
	defer db.Close()

	n, err := dataset.Load(ctx, db, cfg.Driver, r, logger)
	if err != nil {
		return 0, fmt.Errorf("load dataset from %s: %w", source, err)
	}
	logger.Info("dataset loaded", "source", source, "rows", n)
	return n, nil
}
