package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-sync/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "sonido-sync",
	Short: "Tunes onset detection for audio synchronization",
	Long: `sonido-sync grid-searches onset detection parameters over pairs of
synchronized and unsynchronized recordings, reports which parameter
combinations tell them apart, and generates such recordings from MIDI files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger := logging.NewDefaultLogger()
		logger.SetLevel(level)
		logging.SetGlobalLogger(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, error or fatal")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
