package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/tokentrail/internal/metrics"
	"github.com/nao1215/tokentrail/internal/model"
	"github.com/nao1215/tokentrail/internal/traverse"
	"github.com/nao1215/tokentrail/internal/workerpool"
)

// Pool runs crawl tasks.
type Pool interface {
	Add(task workerpool.Task) error
	Status() workerpool.Status
	Drained(ctx context.Context) error
}

// Crawler runs one crawl task.
type Crawler interface {
	Crawl(ctx context.Context, task model.CrawlTask) error
}

// AddressLookup returns stored address metadata, or nil when unknown.
type AddressLookup interface {
	Get(ctx context.Context, addr string) (*model.Address, error)
}

// Tracker schedules crawl tasks on a pool. Each (address, direction) is
// scheduled at most once per Tracker.
type Tracker struct {
	pool      Pool
	crawler   Crawler
	addresses AddressLookup

	out *traverse.DepthPolicy
	in  *traverse.DepthPolicy

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics counts frontier decisions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// New returns a tracker. maxOutDepth and maxInDepth bound each direction:
// traverse.Unbounded (-1) removes the bound and 0 disables the direction.
func New(pool Pool, crawler Crawler, addresses AddressLookup, maxOutDepth, maxInDepth int, opts ...Option) *Tracker {
	t := &Tracker{
		pool:      pool,
		crawler:   crawler,
		addresses: addresses,
		out:       traverse.NewDepthPolicy(maxOutDepth),
		in:        traverse.NewDepthPolicy(maxInDepth),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	return t
}

func (t *Tracker) policy(d model.Direction) *traverse.DepthPolicy {
	if d == model.TransferIn {
		return t.in
	}
	return t.out
}

// Track schedules address in each enabled direction and blocks until the
// pool has drained or ctx is done.
func (t *Tracker) Track(ctx context.Context, token, address string) error {
	if t.out.MaxDepth() != 0 {
		t.schedule(model.CrawlTask{Token: token, Address: address, Direction: model.TransferOut}, nil)
	}
	if t.in.MaxDepth() != 0 {
		t.schedule(model.CrawlTask{Token: token, Address: address, Direction: model.TransferIn}, nil)
	}
	return t.pool.Drained(ctx)
}

// OnNewCounterAddresses schedules the non-sink counterparties of task one
// hop further in the same direction.
func (t *Tracker) OnNewCounterAddresses(ctx context.Context, task model.CrawlTask, addrs []string) {
	for _, addr := range addrs {
		meta, err := t.addresses.Get(ctx, addr)
		if err != nil {
			t.logger.Error("failed to load address metadata", "address", addr, "error", err)
			continue
		}
		t.schedule(task.Child(addr), meta)
	}
}

// schedule admits task through its direction's policy and queues it.
func (t *Tracker) schedule(task model.CrawlTask, meta *model.Address) {
	decision := traverse.Admit(t.policy(task.Direction), task.Address, task.Depth, meta)
	t.metrics.TrackerDecision(decision.String())

	switch decision {
	case traverse.Admitted:
	case traverse.Excluded:
		t.logger.Debug("skipping sink address", "task", task.String(), "tag", meta.EntityTag, "contract", meta.IsContract)
		return
	default:
		return
	}

	err := t.pool.Add(workerpool.Task{
		Name: task.String(),
		Run: func(ctx context.Context) error {
			return t.crawler.Crawl(ctx, task)
		},
	})
	if err != nil {
		t.logger.Warn("failed to schedule crawl task", "task", task.String(), "error", err)
	}
}

// Scheduled returns how many tasks were scheduled in direction d.
func (t *Tracker) Scheduled(d model.Direction) int {
	return t.policy(d).Guard().Len()
}

// MonitorRunLoop reports the pool status to fn every interval and returns
// once the pool is idle or ctx is done.
func (t *Tracker) MonitorRunLoop(ctx context.Context, interval time.Duration, fn func(workerpool.Status)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := t.pool.Status()
			fn(st)
			if st.Queued == 0 && st.Running == 0 {
				return
			}
		}
	}
}
