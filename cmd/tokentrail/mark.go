package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/tokentrail/internal/app"
	"github.com/nao1215/tokentrail/internal/report"
	"github.com/spf13/cobra"
)

// NewMarkCmd creates the mark command.
func NewMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Flag addresses receiving many tiny payments",
		Long: `Mark walks the stored outbound transfer graph from an address and flags
every address that received payments averaging at most 1000 tokens from
at least 100 distinct senders. The result is written as JSON, even when
nothing was flagged.

Examples:
  tokentrail mark -t TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t -a TXYZ...
  tokentrail mark -t TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t -a TXYZ... --level 2`,
		RunE: runMarkCmd,
	}

	addTargetFlags(cmd)
	cmd.Flags().IntP("level", "l", -1, "Maximum hop depth (-1 unbounded)")

	return cmd
}

func runMarkCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	token, address, err := targetFlags(cmd)
	if err != nil {
		return err
	}
	level, err := cmd.Flags().GetInt("level")
	if err != nil {
		return err
	}

	return runWithApp(cmd, cfg, func(ctx context.Context, a *app.App, _ *slog.Logger) error {
		if err := validateTargets(a, token, address); err != nil {
			return err
		}
		rep, path, err := a.Mark(ctx, token, address, level)
		if err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		if _, err := report.NewSimpleWriter(cmd.OutOrStdout()).WriteSuspicious(rep); err != nil {
			return err
		}
		printFiles(cmd, path)
		return nil
	})
}
