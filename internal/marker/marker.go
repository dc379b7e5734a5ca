package marker

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/nao1215/tokentrail/internal/model"
	"github.com/nao1215/tokentrail/internal/traverse"
)

const (
	// MaxTinyPayAmount is the largest average payment counted as tiny.
	MaxTinyPayAmount = 1000
	// MinTinyPayAddresses is how many tiny payers make an address suspicious.
	MinTinyPayAddresses = 100
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

// Marker walks outbound edges and inspects the payers of every address.
type Marker struct {
	edges       EdgeReader
	addresses   AddressLookup
	concurrency int
	logger      *slog.Logger
}

// Option configures a Marker.
type Option func(*Marker)

// WithConcurrency bounds the fan-out of each expanded address.
func WithConcurrency(n int) Option {
	return func(m *Marker) {
		m.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Marker) {
		m.logger = logger
	}
}

// New returns a marker over edges and addresses.
func New(edges EdgeReader, addresses AddressLookup, opts ...Option) *Marker {
	m := &Marker{edges: edges, addresses: addresses, concurrency: 10}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

type node struct {
	addr  string
	depth int
}

// MarkSuspicious inspects address and everything it sends to, up to level
// hops away (negative is unbounded). The result is sorted by the number of
// tiny payers, largest first.
func (m *Marker) MarkSuspicious(ctx context.Context, token, address string, level int) (*model.SuspiciousReport, error) {
	policy := traverse.NewDepthPolicy(level)
	policy.TryVisit(address)

	var (
		mu    sync.Mutex
		found = []model.SuspiciousAddress{}
	)
	w := traverse.NewWalker(m.concurrency, func(ctx context.Context, n node) ([]node, error) {
		s, ok, err := m.inspect(ctx, n.addr)
		if err != nil {
			return nil, err
		}
		if ok {
			m.logger.Info("found suspicious address", "address", s.Address, "payers", s.NumPayInAddr, "tiny_payers", s.NumTinyPayInAddr)
			mu.Lock()
			found = append(found, s)
			mu.Unlock()
		}
		return m.children(ctx, policy, n)
	})
	if err := w.Walk(ctx, node{addr: address}); err != nil {
		return nil, err
	}

	slices.SortFunc(found, func(a, b model.SuspiciousAddress) int {
		if c := cmp.Compare(b.NumTinyPayInAddr, a.NumTinyPayInAddr); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})
	m.logger.Info("suspicious address scan finished", "address", address, "visited", policy.Guard().Len(), "suspicious", len(found))

	return &model.SuspiciousReport{
		Token:      token,
		Address:    address,
		MaxLevel:   level,
		Suspicious: found,
	}, nil
}

// inspect counts the inbound counterparties of addr whose average payment
// is at most MaxTinyPayAmount.
func (m *Marker) inspect(ctx context.Context, addr string) (model.SuspiciousAddress, bool, error) {
	payers, err := m.edges.CounterAddresses(ctx, addr, model.TransferIn, false)
	if err != nil {
		return model.SuspiciousAddress{}, false, err
	}
	tiny := 0
	for _, payer := range payers {
		info, err := m.edges.FlowInfo(ctx, payer, addr)
		if err != nil {
			return model.SuspiciousAddress{}, false, err
		}
		if info.Count != 0 && info.AvgAmount() <= MaxTinyPayAmount {
			tiny++
		}
	}
	s := model.SuspiciousAddress{Address: addr, NumPayInAddr: len(payers), NumTinyPayInAddr: tiny}
	return s, tiny >= MinTinyPayAddresses, nil
}

func (m *Marker) children(ctx context.Context, policy *traverse.DepthPolicy, n node) ([]node, error) {
	receivers, err := m.edges.CounterAddresses(ctx, n.addr, model.TransferOut, false)
	if err != nil {
		return nil, err
	}
	var out []node
	for _, r := range receivers {
		meta, err := m.addresses.Get(ctx, r)
		if err != nil {
			return nil, err
		}
		if traverse.Admit(policy, r, n.depth+1, meta) == traverse.Admitted {
			out = append(out, node{addr: r, depth: n.depth + 1})
		}
	}
	return out, nil
}
