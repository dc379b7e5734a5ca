package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/tokentrail/internal/app"
	"github.com/nao1215/tokentrail/internal/config"
	"github.com/nao1215/tokentrail/internal/log"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long running crawl tasks may take to return
// after a signal.
const shutdownTimeout = 30 * time.Second

// addTargetFlags adds the --token and --address flags shared by the
// traversal commands.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("token", "t", "", "Token contract address")
	cmd.Flags().StringP("address", "a", "", "Address to start from")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("address")
}

func targetFlags(cmd *cobra.Command) (token, address string, err error) {
	if token, err = cmd.Flags().GetString("token"); err != nil {
		return "", "", err
	}
	if address, err = cmd.Flags().GetString("address"); err != nil {
		return "", "", err
	}
	return token, address, nil
}

// loadConfig resolves the configuration file, the environment and the
// persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if cfg.Verbose, err = cmd.Flags().GetBool("verbose"); err != nil {
		return nil, err
	}
	chain, err := cmd.Flags().GetString("chain")
	if err != nil {
		return nil, err
	}
	if chain != "" {
		cfg.Chain = chain
	}
	return cfg, nil
}

// setupLogger builds the redacting logger described by cfg. Logs go to
// stderr as text, or to log_path as JSON lines.
func setupLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func() error, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	if cfg.LogPath == "" {
		return log.NewSecureLogger(stderr, level), func() error { return nil }, nil
	}
	if dir := filepath.Dir(cfg.LogPath); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // path comes from the user's configuration
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return log.NewSecureJSONLogger(f, level), f.Close, nil
}

// runWithApp builds the App for cmd, runs fn with a context cancelled on
// SIGINT/SIGTERM, and shuts the App down afterwards.
func runWithApp(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, a *app.App, logger *slog.Logger) error) (err error) {
	logger, closeLog, err := setupLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeLog(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := a.Shutdown(sctx); serr != nil {
			logger.Error("shutdown failed", "error", serr)
			err = errors.Join(err, serr)
		}
	}()

	if cfg.MetricsAddr != "" {
		srv := a.MetricsServer(cfg.MetricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	return fn(ctx, a, logger)
}

// validateTargets checks the token and address for the configured chain.
func validateTargets(a *app.App, token, address string) error {
	if err := a.ValidateAddress(token); err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if err := a.ValidateAddress(address); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}
