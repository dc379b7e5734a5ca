package reporter

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nao1215/tokentrail/internal/model"
	"github.com/nao1215/tokentrail/internal/traverse"
)

// EdgeReader is the persisted transfer graph.
type EdgeReader interface {
	CounterAddresses(ctx context.Context, addr string, dir model.Direction, skipZero bool) ([]string, error)
	FlowInfo(ctx context.Context, from, to string) (model.FlowInfo, error)
}

// AddressLookup returns stored address metadata, or nil when unknown.
type AddressLookup interface {
	Get(ctx context.Context, addr string) (*model.Address, error)
}

// Archiver receives every path that reached an entity-tagged sink.
// It is called concurrently.
type Archiver interface {
	Archive(ctx context.Context, flow model.ArchivedFlow) error
}

// Request selects what to report on.
type Request struct {
	Token   string
	Address string
	// Level is the maximum hop depth. Negative is unbounded.
	Level     int
	Direction model.Direction
}

// Reporter builds flow reports. One Reporter can serve many runs.
type Reporter struct {
	edges     EdgeReader
	addresses AddressLookup

	tracked     map[string]bool
	minCollect  float64
	skipZero    bool
	concurrency int
	topN        int
	logger      *slog.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithExchanges sets the exchanges that get flow statements.
func WithExchanges(names []string) Option {
	return func(r *Reporter) {
		r.tracked = make(map[string]bool, len(names))
		for _, n := range names {
			r.tracked[n] = true
		}
	}
}

// WithMinCollectAmount sets the amount the exchange hop must exceed.
func WithMinCollectAmount(amount float64) Option {
	return func(r *Reporter) {
		r.minCollect = amount
	}
}

// WithSkipZero ignores counterparties with a zero total.
func WithSkipZero(skip bool) Option {
	return func(r *Reporter) {
		r.skipZero = skip
	}
}

// WithConcurrency bounds the fan-out of each expanded address.
func WithConcurrency(n int) Option {
	return func(r *Reporter) {
		r.concurrency = n
	}
}

// WithTopN overrides DefaultTopN.
func WithTopN(n int) Option {
	return func(r *Reporter) {
		r.topN = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// New returns a reporter over edges and addresses.
func New(edges EdgeReader, addresses AddressLookup, opts ...Option) *Reporter {
	r := &Reporter{
		edges:       edges,
		addresses:   addresses,
		tracked:     map[string]bool{},
		concurrency: 10,
		topN:        DefaultTopN,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

// run is the state of one Report call.
type run struct {
	req     Request
	policy  *traverse.DepthPolicy
	archive Archiver

	mu         sync.Mutex
	tally      map[string]float64
	statements map[string][]model.FlowStatement
	archived   int
}

type node struct {
	addr  string
	depth int
	path  model.FlowPath
}

// Report walks the graph from req.Address and returns the summary.
// archive may be nil.
func (r *Reporter) Report(ctx context.Context, req Request, archive Archiver) (*model.FlowReport, error) {
	start := time.Now()
	r.logger.Info("collecting transfer flows", "address", req.Address, "level", req.Level, "direction", req.Direction.String())

	st := &run{
		req:        req,
		policy:     traverse.NewDepthPolicy(req.Level),
		archive:    archive,
		tally:      make(map[string]float64),
		statements: make(map[string][]model.FlowStatement),
	}
	st.policy.TryVisit(req.Address)

	w := traverse.NewWalker(r.concurrency, func(ctx context.Context, n node) ([]node, error) {
		return r.expand(ctx, st, n)
	})
	if err := w.Walk(ctx, node{addr: req.Address}); err != nil {
		return nil, err
	}

	top := topPositive(st.tally, r.topN)
	for i := range top {
		meta, err := r.addresses.Get(ctx, top[i].Address)
		if err != nil {
			return nil, err
		}
		if meta != nil {
			top[i].EntityTag = meta.EntityTag
			top[i].IsContract = meta.IsContract
		}
	}

	for _, stmts := range st.statements {
		slices.SortStableFunc(stmts, func(a, b model.FlowStatement) int {
			return cmp.Compare(b.Hop.Amount, a.Hop.Amount)
		})
	}

	r.logger.Info("transfer flows collected",
		"address", req.Address,
		"visited", st.policy.Guard().Len(),
		"archived", st.archived,
		"duration", time.Since(start))

	return &model.FlowReport{
		Token:       req.Token,
		Address:     req.Address,
		Level:       req.Level,
		Direction:   req.Direction,
		GeneratedAt: time.Now(),
		TopN:        top,
		Statements:  st.statements,
		Archived:    st.archived,
		Visited:     st.policy.Guard().Len(),
	}, nil
}

// expand tallies every hop of n and returns its non-sink children.
func (r *Reporter) expand(ctx context.Context, st *run, n node) ([]node, error) {
	dir := st.req.Direction
	counterparties, err := r.edges.CounterAddresses(ctx, n.addr, dir, r.skipZero)
	if err != nil {
		return nil, err
	}

	var children []node
	for _, caddr := range counterparties {
		step := model.FlowStep{From: n.addr, To: caddr}
		if dir == model.TransferIn {
			step = model.FlowStep{From: caddr, To: n.addr}
		}
		info, err := r.edges.FlowInfo(ctx, step.From, step.To)
		if err != nil {
			return nil, err
		}
		step.Amount = info.Amount
		if info.Amount != 0 {
			st.credit(step)
		}

		var path model.FlowPath
		if dir == model.TransferIn {
			path, err = n.path.Prepend(step)
		} else {
			path, err = n.path.Append(step)
		}
		if err != nil {
			return nil, err
		}

		meta, err := r.addresses.Get(ctx, caddr)
		if err != nil {
			return nil, err
		}
		if !meta.IsSink() {
			if traverse.Admit(st.policy, caddr, n.depth+1, meta) == traverse.Admitted {
				children = append(children, node{addr: caddr, depth: n.depth + 1, path: path})
			}
			continue
		}
		if meta.EntityTag == "" {
			continue
		}

		if info.Amount > r.minCollect {
			if cex, ok := model.IdentifyExchange(meta.EntityTag); ok && r.tracked[cex] {
				st.addStatement(model.FlowStatement{
					Exchange:        cex,
					EntityTag:       meta.EntityTag,
					ExchangeAddress: caddr,
					Hop:             step,
					Path:            path,
				})
			}
		}
		r.archiveFlow(ctx, st, model.ArchivedFlow{Flows: path, EntityTag: meta.EntityTag})
	}
	return children, nil
}

func (r *Reporter) archiveFlow(ctx context.Context, st *run, flow model.ArchivedFlow) {
	if st.archive == nil {
		return
	}
	if err := st.archive.Archive(ctx, flow); err != nil {
		r.logger.Error("failed to archive flow statement", "path", flow.Flows.String(), "error", err)
		return
	}
	st.mu.Lock()
	st.archived++
	st.mu.Unlock()
}

func (st *run) credit(step model.FlowStep) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.tally[step.From] -= step.Amount
	st.tally[step.To] += step.Amount
}

func (st *run) addStatement(s model.FlowStatement) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.statements[s.Exchange] = append(st.statements[s.Exchange], s)
}
