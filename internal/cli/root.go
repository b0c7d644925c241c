// Package cli implements the standup command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the standup command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "standup",
		Short: "Run daily standups across a team of agents",
		Long: `standup asks every active participant for a report, stores the
structured entries and the transcript, and escalates blockers to the
configured principals.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("env-file", "", "path to a .env file (default ./.env when present)")

	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(RunCmd())
	rootCmd.AddCommand(ShowCmd())
	rootCmd.AddCommand(ReconcileCmd())
	rootCmd.AddCommand(ParticipantsCmd())

	return rootCmd
}
