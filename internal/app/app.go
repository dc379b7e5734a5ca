package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nao1215/tokentrail/internal/config"
	"github.com/nao1215/tokentrail/internal/crawler"
	"github.com/nao1215/tokentrail/internal/database"
	"github.com/nao1215/tokentrail/internal/marker"
	"github.com/nao1215/tokentrail/internal/metrics"
	"github.com/nao1215/tokentrail/internal/model"
	"github.com/nao1215/tokentrail/internal/provider"
	"github.com/nao1215/tokentrail/internal/report"
	"github.com/nao1215/tokentrail/internal/reporter"
	"github.com/nao1215/tokentrail/internal/tracker"
	"github.com/nao1215/tokentrail/internal/workerpool"
)

// transferGraph is the transfer store surface used by the crawler and the
// walkers.
type transferGraph interface {
	crawler.TransferStore
	reporter.EdgeReader
	TotalFlow(ctx context.Context, addr string, dir model.Direction) (model.FlowInfo, error)
}

// App owns the database and the worker pool. Shutdown releases them in
// that order: pool first, then store.
type App struct {
	cfg     *config.Config
	chain   model.Chain
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	db        *database.DB
	scope     database.Scope
	transfers transferGraph
	addresses *database.AddressStore
	source    provider.TransferSource

	pool     *workerpool.Pool
	crawler  *crawler.Crawler
	tracker  *tracker.Tracker
	reporter *reporter.Reporter
	marker   *marker.Marker

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics set. By default a fresh one is created.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithClock overrides the time source used for artifact names.
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// New validates cfg and builds every component. ctx is the context handed
// to crawl tasks for the lifetime of the App.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	chain, err := model.ParseChain(cfg.Chain)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, chain: chain, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = metrics.New(config.AppName)
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.buildEngines(ctx); err != nil {
		_ = a.db.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	db, err := database.Open(database.Options{
		Driver:            a.cfg.Database.Driver,
		Dir:               a.cfg.DatabaseDir(),
		DSN:               a.cfg.Database.DSN,
		CreateIfNotExists: true,
		EnableWAL:         true,
		MaxOpenConns:      a.cfg.Database.MaxOpenConns,
	})
	if err != nil {
		return err
	}
	a.db = db
	a.scope = database.Scope{Source: a.cfg.DataSource(), Chain: string(a.chain)}

	if err := db.EnsureSchema(ctx, a.scope); err != nil {
		_ = db.Close()
		return err
	}
	a.addresses, err = database.NewAddressStore(db, a.scope, a.cfg.AddressCacheSize)
	if err != nil {
		_ = db.Close()
		return err
	}
	a.logger.Debug("database opened", "driver", db.Driver(), "source", db.Source(), "scope", a.scope.Source+"/"+a.scope.Chain)
	return nil
}

func (a *App) buildEngines(ctx context.Context) error {
	var (
		oklink     *provider.OKLink
		crawlerOpt []crawler.Option
		err        error
	)
	if a.cfg.OKLink.APIKey != "" {
		oklink, err = a.newOKLink()
		if err != nil {
			return err
		}
	}

	switch a.cfg.DataSource() {
	case config.SourceTronScan:
		client, err := provider.NewHTTPClient(provider.HTTPOptions{Timeout: a.cfg.TronScan.Timeout, Proxy: a.cfg.Proxy})
		if err != nil {
			return err
		}
		a.source = provider.NewTronScan(provider.TronScanOptions{
			BaseURL:           a.cfg.TronScan.BaseURL,
			APIKeys:           a.cfg.TronScan.APIKeys,
			RequestsPerSecond: a.cfg.TronScan.RequestsPerSecond,
			TokenDecimals:     a.cfg.TronScan.TokenDecimals,
			HTTPClient:        client,
			Logger:            a.logger,
			Metrics:           a.metrics,
		})
		if oklink != nil {
			crawlerOpt = append(crawlerOpt, crawler.WithTagSource(oklink))
		}
		a.transfers, err = database.NewTxnStore(a.db, a.scope)
		if err != nil {
			return err
		}
	default:
		a.source = oklink
		crawlerOpt = append(crawlerOpt, crawler.WithMetadataSource(oklink))
		a.transfers, err = database.NewEdgeStore(a.db, a.scope)
		if err != nil {
			return err
		}
	}

	crawlerOpt = append(crawlerOpt,
		crawler.WithLogger(a.logger),
		crawler.WithMetrics(a.metrics),
		crawler.WithRetry(a.cfg.Retry.PageDelay, a.cfg.Retry.MetadataDelay, a.cfg.Retry.MaxAttempts),
		crawler.WithSkipZero(a.cfg.SkipZeroTransfer),
		crawler.WithRiskyHealthScore(a.cfg.RiskyHealthScore),
	)
	a.crawler, err = crawler.New(a.source, a.transfers, a.addresses, crawlerOpt...)
	if err != nil {
		return err
	}

	a.pool = workerpool.New(
		workerpool.WithConcurrency(a.cfg.WorkerPoolSize),
		workerpool.WithLogger(a.logger),
		workerpool.WithMetrics(a.metrics),
		workerpool.WithContext(ctx),
	)
	a.tracker = tracker.New(a.pool, a.crawler, a.addresses, a.cfg.MaxOutDepth, a.cfg.MaxInDepth,
		tracker.WithLogger(a.logger),
		tracker.WithMetrics(a.metrics),
	)
	a.crawler.SetObserver(a.tracker)

	a.reporter = reporter.New(a.transfers, a.addresses,
		reporter.WithExchanges(a.cfg.Exchanges),
		reporter.WithMinCollectAmount(a.cfg.MinCollectTransferAmount),
		reporter.WithSkipZero(a.cfg.SkipZeroTransfer),
		reporter.WithConcurrency(a.cfg.WorkerPoolSize),
		reporter.WithLogger(a.logger),
	)
	a.marker = marker.New(a.transfers, a.addresses,
		marker.WithConcurrency(a.cfg.WorkerPoolSize),
		marker.WithLogger(a.logger),
	)
	return nil
}

func (a *App) newOKLink() (*provider.OKLink, error) {
	client, err := provider.NewHTTPClient(provider.HTTPOptions{Timeout: a.cfg.OKLink.Timeout, Proxy: a.cfg.Proxy})
	if err != nil {
		return nil, err
	}
	return provider.NewOKLink(provider.OKLinkOptions{
		BaseURL:           a.cfg.OKLink.BaseURL,
		APIKey:            a.cfg.OKLink.APIKey,
		Chain:             string(a.chain),
		RequestsPerSecond: a.cfg.OKLink.RequestsPerSecond,
		HTTPClient:        client,
		Logger:            a.logger,
		Metrics:           a.metrics,
	})
}

// Chain returns the configured chain.
func (a *App) Chain() model.Chain { return a.chain }

// SourceName returns the transfer data source in use.
func (a *App) SourceName() string { return a.source.Name() }

// Metrics returns the metrics set.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// ValidateAddress checks addr against the configured chain.
func (a *App) ValidateAddress(addr string) error {
	return model.ValidateAddress(a.chain, addr)
}

// Track crawls the transfer graph around address until the frontier is
// exhausted or ctx is done. Pool status is logged every monitor interval.
func (a *App) Track(ctx context.Context, token, address string) error {
	a.logger.Info("start tracking",
		"token", token,
		"address", address,
		"source", a.source.Name(),
		"workers", a.pool.Concurrency(),
		"max_out_depth", a.cfg.MaxOutDepth,
		"max_in_depth", a.cfg.MaxInDepth)

	start := time.Now()
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.tracker.MonitorRunLoop(monitorCtx, a.cfg.MonitorInterval, func(s workerpool.Status) {
			a.logger.Info("worker pool status", "queued", s.Queued, "running", s.Running)
		})
	}()

	err := a.tracker.Track(ctx, token, address)
	stopMonitor()
	<-done
	if err != nil {
		return err
	}
	a.logger.Info("tracking finished",
		"address", address,
		"out_scheduled", a.tracker.Scheduled(model.TransferOut),
		"in_scheduled", a.tracker.Scheduled(model.TransferIn),
		"duration", time.Since(start))
	return nil
}

// ReportResult is the outcome of Report.
type ReportResult struct {
	Report *model.FlowReport
	// Files are the artifacts written, archive first.
	Files []string
}

// Report walks the persisted graph from address and writes the flow
// artifacts into the output directory.
func (a *App) Report(ctx context.Context, req reporter.Request) (*ReportResult, error) {
	artifacts, err := report.NewArtifacts(a.cfg.OutputDir, a.source.Name(), string(a.chain), a.now())
	if err != nil {
		return nil, err
	}
	archive, err := artifacts.CreateArchive(req.Address)
	if err != nil {
		return nil, err
	}

	rep, err := a.reporter.Report(ctx, req, archive)
	if cerr := archive.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close archive: %w", cerr))
	}
	if err != nil {
		return nil, err
	}

	files, err := artifacts.WriteFlowReport(rep)
	if err != nil {
		return nil, err
	}
	return &ReportResult{Report: rep, Files: append([]string{archive.Name()}, files...)}, nil
}

// Mark scans address and the addresses it pays for tiny-payment
// receivers and writes the JSON artifact.
func (a *App) Mark(ctx context.Context, token, address string, level int) (*model.SuspiciousReport, string, error) {
	rep, err := a.marker.MarkSuspicious(ctx, token, address, level)
	if err != nil {
		return nil, "", err
	}
	artifacts, err := report.NewArtifacts(a.cfg.OutputDir, a.source.Name(), string(a.chain), a.now())
	if err != nil {
		return nil, "", err
	}
	path, err := artifacts.WriteSuspicious(rep)
	if err != nil {
		return nil, "", err
	}
	return rep, path, nil
}

// TotalFlow returns the persisted totals of address in dir.
func (a *App) TotalFlow(ctx context.Context, address string, dir model.Direction) (model.FlowInfo, error) {
	return a.transfers.TotalFlow(ctx, address, dir)
}

// MetricsServer returns an HTTP server exposing /metrics on addr.
func (a *App) MetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// Shutdown terminates the pool, waiting for running tasks until ctx is
// done, and then closes the database. Later calls return the first result.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		var errs []error
		if err := a.pool.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop worker pool: %w", err))
		}
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
		a.shutdownErr = errors.Join(errs...)
	})
	return a.shutdownErr
}
