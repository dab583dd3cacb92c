package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// LoadResult is the structured output of the load command.
type LoadResult struct {
	Rows   int    `json:"rows" yaml:"rows"`
	Source string `json:"source" yaml:"source"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the passengers dataset",
		Long: `Create the passengers table if needed and replace its rows with the
contents of a CSV file. Without --csv the embedded sample is loaded.

Example:
  queryexec load
  queryexec load --csv ./titanic.csv --dataset.dsn ./dataset.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts, cmd)
			if err != nil {
				return err
			}
			formatter := newFormatter(rootOpts, cmd)
			logger := cfg.Log.NewLogger(rootOpts.Verbose)

			source := csvPath
			if source == "" {
				source = cfg.Dataset.CSV
			}

			n, err := loadDataset(cmd.Context(), cfg.Dataset, source, logger)
			if err != nil {
				_ = formatter.Error("LOAD_FAILED", err.Error(), nil)
				return ReportedExitError(ExitCommandError, "load failed", err)
			}

			if source == "" {
				source = "embedded"
			}
			res := LoadResult{Rows: n, Source: source, DSN: cfg.Dataset.DSN}
			return formatter.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "Loaded %d passengers from %s into %s\n", res.Rows, res.Source, res.DSN)
			})
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file to load (default: embedded sample)")

	return cmd
}
