package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/tokentrail/internal/metrics"
	"github.com/nao1215/tokentrail/internal/model"
	"github.com/nao1215/tokentrail/internal/provider"
	"github.com/nao1215/tokentrail/internal/retry"
	"golang.org/x/sync/singleflight"
)

const (
	// replayPageSize is the batch size used to read persisted edges back.
	replayPageSize = 1000

	// bigTaskTransfers is the fetched-row count after which a run is
	// logged as a big task.
	bigTaskTransfers = 1000

	defaultPageDelay     = 1500 * time.Millisecond
	defaultMetadataDelay = time.Second
)

// ErrLayoutMismatch is returned by New when the source and the store
// disagree on how transfers are stored.
var ErrLayoutMismatch = errors.New("transfer source and store use different layouts")

// Observer receives the counterparties discovered by a crawl.
type Observer interface {
	OnNewCounterAddresses(ctx context.Context, task model.CrawlTask, addrs []string)
}

// TransferStore persists transfer pages and the cursor that follows them.
type TransferStore interface {
	Layout() model.Layout
	SaveTransfers(ctx context.Context, addr string, dir model.Direction, transfers []model.Transfer, offset int64) error
	Edges(ctx context.Context, addr string, dir model.Direction, offset, limit int) ([]model.TransferEdge, error)
	CounterAddresses(ctx context.Context, addr string, dir model.Direction, skipZero bool) ([]string, error)
}

// AddressStore persists address metadata, statistics and crawl cursors.
type AddressStore interface {
	Get(ctx context.Context, addr string) (*model.Address, error)
	Save(ctx context.Context, a *model.Address) error
	TrackOffset(ctx context.Context, addr string, dir model.Direction) (int64, bool, error)
	UpdateStats(ctx context.Context, addr string, dir model.Direction, metrics model.FlowMetrics) error
}

// Crawler fetches and persists the transfers of one address at a time.
// It is safe for concurrent use by pool workers.
type Crawler struct {
	source    provider.TransferSource
	meta      provider.MetadataSource
	tags      provider.TagSource
	transfers TransferStore
	addresses AddressStore
	observer  Observer

	logger  *slog.Logger
	metrics *metrics.Metrics

	pageDelay     time.Duration
	metadataDelay time.Duration
	maxAttempts   int
	pageSize      int
	skipZero      bool
	riskyScore    float64

	inflight singleflight.Group
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMetadataSource fetches full address metadata, including the health
// score, the first time an address is seen.
func WithMetadataSource(m provider.MetadataSource) Option {
	return func(c *Crawler) {
		c.meta = m
	}
}

// WithTagSource looks up the entity tag of new addresses that arrive
// without one. It is only used when no metadata source is set.
func WithTagSource(t provider.TagSource) Option {
	return func(c *Crawler) {
		c.tags = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithMetrics records pages, retries and provider calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// WithRetry sets the fixed retry delays of page and metadata fetches.
// maxAttempts of 0 retries until the context is cancelled.
func WithRetry(pageDelay, metadataDelay time.Duration, maxAttempts int) Option {
	return func(c *Crawler) {
		c.pageDelay = pageDelay
		c.metadataDelay = metadataDelay
		c.maxAttempts = maxAttempts
	}
}

// WithPageSize overrides provider.DefaultPageSize.
func WithPageSize(n int) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithSkipZero drops counterparties with a zero total amount.
func WithSkipZero(skip bool) Option {
	return func(c *Crawler) {
		c.skipZero = skip
	}
}

// WithRiskyHealthScore crawls the inbound side of outbound tasks whose
// address health score is below score. 0 disables it.
func WithRiskyHealthScore(score float64) Option {
	return func(c *Crawler) {
		c.riskyScore = score
	}
}

// New creates a Crawler reading from source and writing to transfers and
// addresses.
func New(source provider.TransferSource, transfers TransferStore, addresses AddressStore, opts ...Option) (*Crawler, error) {
	if source.Layout() != transfers.Layout() {
		return nil, fmt.Errorf("%w: source %s is %s, store is %s",
			ErrLayoutMismatch, source.Name(), source.Layout(), transfers.Layout())
	}

	c := &Crawler{
		source:        source,
		transfers:     transfers,
		addresses:     addresses,
		pageDelay:     defaultPageDelay,
		metadataDelay: defaultMetadataDelay,
		pageSize:      provider.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// SetObserver sets the receiver of discovered counterparties. It must be
// called before the first Crawl.
func (c *Crawler) SetObserver(o Observer) {
	c.observer = o
}

// Crawl runs one crawl task to completion. Provider failures are retried;
// storage failures abort the crawl and are returned.
func (c *Crawler) Crawl(ctx context.Context, task model.CrawlTask) error {
	c.logger.Debug("crawling transfers", "source", c.source.Name(), "task", task.String())

	if c.meta != nil {
		root, err := c.ensureAddress(ctx, task.Token, task.Address, nil)
		if err != nil {
			return err
		}
		if c.isRisky(root) && task.Direction == model.TransferOut {
			c.logger.Info("risky address, crawling inbound transfers first",
				"address", task.Address, "health_score", *root.HealthScore)
			inbound := task
			inbound.Direction = model.TransferIn
			if err := c.crawl(ctx, inbound, false); err != nil {
				return err
			}
		}
	}

	return c.crawl(ctx, task, true)
}

func (c *Crawler) isRisky(a *model.Address) bool {
	return c.riskyScore > 0 && a.HasHealthScore() && *a.HealthScore < c.riskyScore
}

// crawl pages through one direction. notify hands the counterparties to
// the observer afterwards.
func (c *Crawler) crawl(ctx context.Context, task model.CrawlTask, notify bool) error {
	cursor, resumed, err := c.addresses.TrackOffset(ctx, task.Address, task.Direction)
	if err != nil {
		return err
	}

	if resumed && notify && c.observer != nil && c.transfers.Layout() == model.LayoutPerTransaction {
		known, err := c.transfers.CounterAddresses(ctx, task.Address, task.Direction, c.skipZero)
		if err != nil {
			return err
		}
		if len(known) > 0 {
			c.observer.OnNewCounterAddresses(ctx, task, known)
		}
	}

	if err := c.fetchAll(ctx, task, cursor); err != nil {
		return err
	}

	flows, err := c.loadFlows(ctx, task)
	if err != nil {
		return err
	}
	if len(flows) == 0 {
		c.logger.Debug("crawl task done, no transfers", "task", task.String())
		return nil
	}

	stats := computeMetrics(flows)
	if err := c.addresses.UpdateStats(ctx, task.Address, task.Direction, stats); err != nil {
		return err
	}

	if !notify || c.observer == nil {
		return nil
	}

	var minAvg float64
	if task.Direction == model.TransferOut {
		minAvg = cashOutFilter(stats)
		if minAvg > 0 {
			c.logger.Info("suspicious cash-out address caught",
				"address", task.Address,
				"counterparties", stats.Counterparties,
				"p75_avg_amount_per_txn", minAvg)
		}
	}
	targets := followTargets(flows, minAvg, c.skipZero)
	if len(targets) > 0 {
		c.observer.OnNewCounterAddresses(ctx, task, targets)
	}

	c.logger.Debug("crawl task done", "task", task.String(), "counterparties", len(flows), "followed", len(targets))
	return nil
}

// fetchAll pulls pages starting at cursor until the source is exhausted.
func (c *Crawler) fetchAll(ctx context.Context, task model.CrawlTask, cursor int64) error {
	perTxn := c.transfers.Layout() == model.LayoutPerTransaction

	q := provider.Query{
		Token:     task.Token,
		Address:   task.Address,
		Direction: task.Direction,
		Limit:     c.pageSize,
	}
	if perTxn {
		q.Since = cursor
	} else {
		q.Offset = cursor
	}

	fetched := 0
	bigTask := false
	for {
		page, err := c.fetchPage(ctx, q)
		if err != nil {
			return err
		}
		if len(page.Transfers) == 0 {
			c.logger.Debug("no more transfers to crawl", "task", task.String(), "offset", q.Offset)
			return nil
		}

		next := q.Offset + int64(len(page.Transfers))
		newCursor := next
		if perTxn {
			newCursor = max(cursor, lastBlockTS(page.Transfers))
		}

		if err := c.persistPage(ctx, task, page.Transfers, newCursor); err != nil {
			return err
		}
		cursor = newCursor
		q.Offset = next

		fetched += len(page.Transfers)
		if !bigTask && fetched >= bigTaskTransfers {
			c.logger.Info("big crawl task with more than 1000 transfers", "task", task.String())
			bigTask = true
		}

		if perTxn && page.Total > 0 && q.Offset >= page.Total {
			c.logger.Debug("all transfers crawled", "task", task.String(), "total", page.Total)
			return nil
		}
	}
}

func (c *Crawler) fetchPage(ctx context.Context, q provider.Query) (*provider.Page, error) {
	policy := c.policy(c.pageDelay, "page", func(attempt int, err error) {
		c.logger.Error("failed to fetch transfer page",
			"source", c.source.Name(), "address", q.Address, "direction", q.Direction.String(),
			"offset", q.Offset, "attempt", attempt, "error", err)
	})
	return retry.DoValue(ctx, policy, func(ctx context.Context) (*provider.Page, error) {
		return c.source.Transfers(ctx, q)
	})
}

// persistPage records unseen endpoints, then stores the page and the new
// cursor atomically.
func (c *Crawler) persistPage(ctx context.Context, task model.CrawlTask, transfers []model.Transfer, cursor int64) error {
	seen := make(map[string]struct{}, len(transfers)*2)
	for _, t := range transfers {
		for _, ep := range []struct {
			addr string
			hint *model.AddressHint
		}{{t.From, t.FromHint}, {t.To, t.ToHint}} {
			if _, ok := seen[ep.addr]; ok || ep.addr == "" {
				continue
			}
			seen[ep.addr] = struct{}{}
			if _, err := c.ensureAddress(ctx, task.Token, ep.addr, ep.hint); err != nil {
				return err
			}
		}
	}

	if err := c.transfers.SaveTransfers(ctx, task.Address, task.Direction, transfers, cursor); err != nil {
		return err
	}
	c.metrics.PagePersisted(task.Direction.String(), len(transfers))
	return nil
}

// loadFlows reads every persisted edge of the task back, in pages.
func (c *Crawler) loadFlows(ctx context.Context, task model.CrawlTask) ([]counterpartyFlow, error) {
	var flows []counterpartyFlow
	for offset := 0; ; {
		edges, err := c.transfers.Edges(ctx, task.Address, task.Direction, offset, replayPageSize)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			flows = append(flows, counterpartyFlow{
				Address: e.Counterparty(task.Direction),
				Flow:    model.FlowInfo{Count: e.TxnCount, Amount: e.TotalValue},
			})
		}
		if len(edges) < replayPageSize {
			return flows, nil
		}
		offset += len(edges)
	}
}

// ensureAddress makes sure addr has a metadata record and returns it.
// Concurrent calls for the same address share one lookup.
func (c *Crawler) ensureAddress(ctx context.Context, token, addr string, hint *model.AddressHint) (*model.Address, error) {
	v, err, _ := c.inflight.Do(addr, func() (any, error) {
		known, err := c.addresses.Get(ctx, addr)
		if err != nil {
			return nil, err
		}

		if c.meta != nil {
			if known.HasHealthScore() {
				return known, nil
			}
			return c.fetchMetadata(ctx, token, addr, hint)
		}

		if known != nil {
			return known, nil
		}
		a := &model.Address{Address: addr}
		if hint != nil {
			a.IsContract = hint.IsContract
			a.EntityTag = hint.EntityTag
		}
		if a.EntityTag == "" && c.tags != nil {
			c.lookupTag(ctx, token, a)
		}
		if err := c.addresses.Save(ctx, a); err != nil {
			return nil, err
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Address), nil
}

func (c *Crawler) fetchMetadata(ctx context.Context, token, addr string, hint *model.AddressHint) (*model.Address, error) {
	policy := c.policy(c.metadataDelay, "metadata", func(attempt int, err error) {
		c.logger.Error("failed to fetch address metadata", "address", addr, "attempt", attempt, "error", err)
	})
	a, err := retry.DoValue(ctx, policy, func(ctx context.Context) (*model.Address, error) {
		return c.meta.AddressInfo(ctx, token, addr)
	})
	if err != nil {
		return nil, err
	}
	a.Address = addr
	if hint != nil {
		a.IsContract = a.IsContract || hint.IsContract
		if a.EntityTag == "" {
			a.EntityTag = hint.EntityTag
		}
	}
	if err := c.addresses.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// lookupTag fills the entity tag of a from the tag source. Failures are
// logged and leave a untagged.
func (c *Crawler) lookupTag(ctx context.Context, token string, a *model.Address) {
	h, err := c.tags.AddressTag(ctx, token, a.Address)
	if err != nil {
		c.logger.Warn("failed to look up address tag", "address", a.Address, "error", err)
		return
	}
	if h != nil && h.EntityTag != "" {
		a.EntityTag = h.EntityTag
	}
}

// policy retries failures at delay. Do itself stops on a done context.
func (c *Crawler) policy(delay time.Duration, op string, onRetry func(int, error)) retry.Policy {
	return retry.Policy{
		Delay:       delay,
		MaxAttempts: c.maxAttempts,
		Classify:    c.classify,
		OnRetry: func(attempt int, err error) {
			c.metrics.Retry(op)
			onRetry(attempt, err)
		},
	}
}

// classify treats rejected credentials as fatal once attempts are capped.
// Without a cap every failure is retried.
func (c *Crawler) classify(err error) retry.Class {
	if c.maxAttempts <= 0 {
		return retry.Retryable
	}
	var se *provider.StatusError
	if errors.As(err, &se) && (se.HTTPStatus == http.StatusUnauthorized || se.HTTPStatus == http.StatusForbidden) {
		return retry.Fatal
	}
	return retry.Retryable
}

func lastBlockTS(transfers []model.Transfer) int64 {
	var ts int64
	for _, t := range transfers {
		ts = max(ts, t.LastTxnTS)
	}
	return ts
}
