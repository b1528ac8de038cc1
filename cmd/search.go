package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sync/algorithms/onset"
	"github.com/RyanBlaney/sonido-sync/gridsearch"
	"github.com/RyanBlaney/sonido-sync/logging"
)

var searchFlags struct {
	config  string
	odfs    []string
	workers int
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchFlags.config, "config", "", "JSON grid config (defaults to the full grid)")
	searchCmd.Flags().StringSliceVar(&searchFlags.odfs, "odfs", nil, "onset detection functions to test, overriding the config")
	searchCmd.Flags().IntVar(&searchFlags.workers, "workers", 0, "concurrent units (0 uses the config or NumCPU)")
}

var searchCmd = &cobra.Command{
	Use:   "search <datasetDir> <out.csv>",
	Short: "Runs the onset detection grid search",
	Long: `Runs every parameter combination against each source directory of the
dataset and writes one summary line per combination to the output CSV.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadSearchConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
		defer stop()

		summary, runErr := gridsearch.Run(ctx, args[0], config, logging.GetGlobalLogger())
		if summary == nil {
			return runErr
		}
		if runErr != nil {
			logging.Warn("writing partial results: " + runErr.Error())
		}

		if err := writeReport(args[1], gridsearch.Aggregate(summary.Table)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d tests, %d skipped, %d tuples written to %s\n",
			summary.RunID, summary.Tests, summary.Skipped, summary.Table.Len(), args[1])
		return runErr
	},
}

func loadSearchConfig() (*gridsearch.Config, error) {
	config := gridsearch.DefaultConfig()
	if searchFlags.config != "" {
		loaded, err := gridsearch.LoadConfig(searchFlags.config)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if len(searchFlags.odfs) > 0 {
		config.ODFs = config.ODFs[:0]
		for _, name := range searchFlags.odfs {
			alg, err := onset.ParseAlgorithm(name)
			if err != nil {
				return nil, err
			}
			config.ODFs = append(config.ODFs, alg)
		}
	}
	if searchFlags.workers > 0 {
		config.Workers = searchFlags.workers
	}
	return config, nil
}

func writeReport(path string, rows []gridsearch.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := gridsearch.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readReport(path string) ([]gridsearch.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return gridsearch.ReadCSV(f)
}

// commandContext returns the command's context or a background one when
// the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
