package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tokentrail.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokentrail",
		Short: "Trace token flows across blockchain addresses",
		Long: `tokentrail crawls the token transfer graph around an address through the
OKLink or TronScan APIs, stores it in SQLite or PostgreSQL, and reports
where the money went: the largest net receivers, the paths that end at
known exchange deposit addresses, and addresses receiving many tiny
payments.

Run "tokentrail init" to create a commented configuration file.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .tokentrail in current or home directory)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("chain", "", "Chain to work on: TRX or ETH (default from configuration)")

	cmd.AddCommand(NewTrackCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewMarkCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
