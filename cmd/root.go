// Package cmd holds the conference-webapp command line.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conference-webapp",
		Short: "Conference management REST backend",
		Long: `conference-webapp serves the REST API for locations, their conferences,
presentations and attendees, and the users taking part in them.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewUserAddCmd())
	cmd.AddCommand(NewHashPasswordCmd())

	return cmd
}
