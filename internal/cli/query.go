package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/queryexec/internal/model"
)

const pollInterval = 20 * time.Millisecond

// NewQueryCommand creates the query command group.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Manage and run stored queries",
	}

	cmd.AddCommand(newQueryAddCommand(rootOpts))
	cmd.AddCommand(newQueryListCommand(rootOpts))
	cmd.AddCommand(newQueryRunCommand(rootOpts))

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// withApp loads config, opens the app and runs fn. The dataset is used as
// is; reloading it is the job of the load command.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app, f *OutputFormatter) error) error {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	cfg.Dataset.LoadOnStart = false

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, cfg, cfg.Log.NewLogger(opts.Verbose))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open", err)
	}
	defer a.Close(cfg.HTTP.ShutdownTimeout)

	return fn(ctx, a, newFormatter(opts, cmd))
}

// outputQueryError reports a façade error. Typed errors exit with
// ExitFailure; anything else is a command error.
func outputQueryError(f *OutputFormatter, err error) error {
	var e *model.Error
	if errors.As(err, &e) {
		var details any
		if len(e.Details) > 0 {
			details = e.Details
		}
		_ = f.Error(string(e.Code), e.Message, details)
		return ReportedExitError(ExitFailure, string(e.Code), err)
	}
	_ = f.Error("INTERNAL", err.Error(), nil)
	return ReportedExitError(ExitCommandError, "internal error", err)
}

func newQueryAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <sql>",
		Short: "Register a query",
		Example: `  queryexec query add "SELECT Name FROM passengers WHERE Survived = 1"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				id, err := a.svc.CreateQuery(ctx, args[0])
				if err != nil {
					return outputQueryError(f, err)
				}
				return f.Success(map[string]int64{"id": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Registered query %d\n", id)
				})
			})
		},
	}
}

func newQueryListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List registered queries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				queries, err := a.svc.ListQueries(ctx)
				if err != nil {
					return outputQueryError(f, err)
				}
				return f.Success(queries, func(w io.Writer) {
					if len(queries) == 0 {
						fmt.Fprintln(w, "No queries registered")
						return
					}
					for _, q := range queries {
						fmt.Fprintf(w, "%d\t%s\n", q.ID, q.Text)
					}
				})
			})
		},
	}
}

func newQueryRunCommand(rootOpts *RootOptions) *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "run <id>",
		Short: "Execute a registered query",
		Long: `Execute a registered query against the dataset and print its rows.

With --async the query is submitted to the worker pool and polled until
it completes, exercising the same path as POST /queries/execute/async.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid query id %q", args[0]))
			}

			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, f *OutputFormatter) error {
				var result model.Result
				if async {
					result, err = runAsync(ctx, a, f, id)
				} else {
					result, err = a.svc.ExecuteSync(ctx, id)
				}
				if err != nil {
					return outputQueryError(f, err)
				}
				return f.Success(result, func(w io.Writer) { writeRows(w, result) })
			})
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "run on the worker pool and poll for the result")

	return cmd
}

// runAsync submits id and polls until the execution is terminal. A FAILED
// execution is returned as EXECUTION_FAILED carrying its message.
func runAsync(ctx context.Context, a *app, f *OutputFormatter, id int64) (model.Result, error) {
	executionID, err := a.svc.ExecuteAsync(ctx, id)
	if err != nil {
		return nil, err
	}
	f.VerboseLog("submitted execution %s", executionID)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := a.svc.GetAsyncStatus(executionID)
		if err != nil {
			return nil, err
		}
		f.VerboseLog("execution %s: %s", executionID, status.Status)

		switch status.Status {
		case model.StatusCompleted:
			return status.Result, nil
		case model.StatusFailed:
			return nil, &model.Error{Code: model.ErrCodeExecution, Message: *status.ErrorMessage}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func writeRows(w io.Writer, result model.Result) {
	for _, row := range result {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(w, "(%d rows)\n", len(result))
}
