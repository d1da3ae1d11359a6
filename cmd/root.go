package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "campusfind",
	Short: "Campus lost-and-found platform backend",
	Long: `Backend for the campus lost-and-found platform: HTTP API server,
claim-notification worker, and database migrations.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
