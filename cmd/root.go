package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bluebridge/bluebridge-go/internal/di"
)

var (
	// Container is the dependency injection container
	Container *di.Container

	// ConfigPath is the path to the configuration file
	ConfigPath string

	// LogLevel is the logging level
	LogLevel string

	// RootCmd is the root command for CLI
	RootCmd = &cobra.Command{
		Use:   "bluebridge",
		Short: "BlueBridge - Bluetooth RFCOMM to local HTTP bridge",
		Long: `BlueBridge accepts Bluetooth RFCOMM connections from a paired phone and
turns each JSON message into an HTTP call against a local web application.
The response body is sent back over the same connection.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize container
			Container = di.NewContainer()

			if err := Container.Initialize(ConfigPath, LogLevel); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			// Close container
			if Container != nil {
				Container.Close()
			}
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Add global flags
	RootCmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "Path to configuration file (default: ~/.bluebridge/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Set logging level (debug, info, warn, error)")
}
