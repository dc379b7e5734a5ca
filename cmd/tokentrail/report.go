package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/tokentrail/internal/app"
	"github.com/nao1215/tokentrail/internal/model"
	"github.com/nao1215/tokentrail/internal/report"
	"github.com/nao1215/tokentrail/internal/reporter"
	"github.com/spf13/cobra"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise where the funds of an address went",
		Long: `Report walks the stored transfer graph from an address and writes:
- a top-50 CSV of the addresses with the largest net inflow
- one CSV per tracked exchange with the paths ending at its addresses
- a JSON-lines archive of every path ending at an entity-tagged address
- a Markdown summary

Run "track" first; report works on stored data only.

Examples:
  tokentrail report -t TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t -a TXYZ...
  tokentrail report -t TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t -a TXYZ... --level 3 --direction in`,
		RunE: runReportCmd,
	}

	addTargetFlags(cmd)
	cmd.Flags().IntP("level", "l", -1, "Maximum hop depth (-1 unbounded)")
	cmd.Flags().StringP("direction", "d", "out", "Edges to follow: out or in")
	cmd.Flags().BoolP("json", "j", false, "Print the report as JSON instead of a text summary")

	return cmd
}

func runReportCmd(cmd *cobra.Command, _ []string) error {
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
	dirName, err := cmd.Flags().GetString("direction")
	if err != nil {
		return err
	}
	dir, err := model.ParseDirection(dirName)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	return runWithApp(cmd, cfg, func(ctx context.Context, a *app.App, _ *slog.Logger) error {
		if err := validateTargets(a, token, address); err != nil {
			return err
		}
		res, err := a.Report(ctx, reporter.Request{Token: token, Address: address, Level: level, Direction: dir})
		if err != nil {
			return fmt.Errorf("report failed: %w", err)
		}

		var w report.Writer = report.NewSimpleWriter(cmd.OutOrStdout(), report.WithVerbose(cfg.Verbose))
		if asJSON {
			w = report.NewJSONWriter(cmd.OutOrStdout(), report.WithPrettyPrint())
		}
		if _, err := w.WriteFlowReport(res.Report); err != nil {
			return err
		}
		if !asJSON {
			printFiles(cmd, res.Files...)
		}
		return nil
	})
}

func printFiles(cmd *cobra.Command, files ...string) {
	fmt.Fprintln(cmd.OutOrStdout(), "Artifacts:")
	for _, f := range files {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
	}
}
