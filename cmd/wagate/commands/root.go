// Package commands provides the CLI commands for wagate.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "wagate",
	Short: "wagate - multi-device chat messaging gateway",
	Long: `wagate runs chat sessions for many devices at once and forwards
their inbound messages to per-device webhooks.

Run 'wagate serve' to start the gateway and its admin HTTP API.`,
	Version: Version,
	// If no subcommand, show help
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("wagate %s (%s)\n", Version, BuildTime))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
