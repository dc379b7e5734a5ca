package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nao1215/tokentrail/internal/app"
	"github.com/nao1215/tokentrail/internal/config"
	"github.com/spf13/cobra"
)

// NewTrackCmd creates the track command.
func NewTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Crawl token transfers around an address",
		Long: `Track crawls the transfers of a token starting at an address and follows
every counterparty that is neither a contract nor an entity-tagged address
(exchanges, bridges, services), up to the configured depth per direction.

Transfers and address metadata are stored in the database, so an
interrupted run resumes where it stopped.

Examples:
  # Follow outbound transfers three hops deep
  tokentrail track -t TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t -a TXYZ... --out-depth 3

  # Also follow inbound transfers one hop, with 20 workers
  tokentrail track -t TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t -a TXYZ... --in-depth 1 --workers 20

  # Crawl Ethereum through OKLink
  tokentrail --chain ETH track -t 0xdAC17F958D2ee523a2206206994597C13D831ec7 -a 0xabc...`,
		RunE: runTrackCmd,
	}

	addTargetFlags(cmd)
	cmd.Flags().Int("out-depth", config.DefaultMaxOutDepth,
		"Outbound hop limit (-1 unbounded, 0 disables)")
	cmd.Flags().Int("in-depth", config.DefaultMaxInDepth,
		"Inbound hop limit (-1 unbounded, 0 disables)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkerPoolSize,
		"Number of concurrent crawl tasks")

	return cmd
}

func runTrackCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyTrackFlags(cmd, cfg); err != nil {
		return err
	}
	token, address, err := targetFlags(cmd)
	if err != nil {
		return err
	}

	return runWithApp(cmd, cfg, func(ctx context.Context, a *app.App, logger *slog.Logger) error {
		if err := validateTargets(a, token, address); err != nil {
			return err
		}
		err := a.Track(ctx, token, address)
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			logger.Info("received shutdown signal, stopping")
			return nil
		}
		if err != nil {
			return fmt.Errorf("tracking failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tracking of %s finished\n", address)
		return nil
	})
}

// applyTrackFlags overrides configuration values with explicitly set flags.
func applyTrackFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := []struct {
		name string
		dst  *int
	}{
		{"out-depth", &cfg.MaxOutDepth},
		{"in-depth", &cfg.MaxInDepth},
		{"workers", &cfg.WorkerPoolSize},
	}
	for _, f := range flags {
		if !cmd.Flags().Changed(f.name) {
			continue
		}
		v, err := cmd.Flags().GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}
