package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version
const Version = "0.1.0"

// versionCmd is the command to display version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Long:  `Display BlueBridge version.`,
	// The version needs no configuration
	PersistentPreRun:  func(cmd *cobra.Command, args []string) {},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("BlueBridge v%s\n", Version)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
