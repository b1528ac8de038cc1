package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sync/logging"
	"github.com/RyanBlaney/sonido-sync/publish"
)

var publishFlags struct {
	table    string
	region   string
	endpoint string
	runID    string
}

func init() {
	rootCmd.AddCommand(publishCmd)

	defaults := publish.DefaultConfig()
	f := publishCmd.Flags()
	f.StringVar(&publishFlags.table, "table", defaults.Table, "DynamoDB table")
	f.StringVar(&publishFlags.region, "region", defaults.Region, "AWS region")
	f.StringVar(&publishFlags.endpoint, "endpoint", defaults.Endpoint, "DynamoDB endpoint (empty for AWS)")
	f.StringVar(&publishFlags.runID, "run-id", "", "partition key for the rows (defaults to a new id)")
}

var publishCmd = &cobra.Command{
	Use:   "publish <results.csv>",
	Short: "Uploads grid search results to DynamoDB",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := readReport(args[0])
		if err != nil {
			return err
		}

		config := publish.DefaultConfig()
		config.Table = publishFlags.table
		config.Region = publishFlags.region
		config.Endpoint = publishFlags.endpoint

		publisher, err := publish.NewPublisher(config, logging.GetGlobalLogger())
		if err != nil {
			return err
		}

		runID := publishFlags.runID
		if runID == "" {
			runID = uuid.New().String()
		}
		n, err := publisher.Publish(commandContext(cmd), runID, rows)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %d rows to %s as run %s\n", n, config.Table, runID)
		return nil
	},
}
