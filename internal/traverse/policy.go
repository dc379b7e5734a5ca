package traverse

import (
	"sync"

	"github.com/nao1215/tokentrail/internal/model"
)

// Unbounded disables the depth limit.
const Unbounded = -1

// Guard remembers visited keys. It is safe for concurrent use.
type Guard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewGuard returns an empty guard.
func NewGuard() *Guard {
	return &Guard{seen: make(map[string]struct{})}
}

// TryVisit marks key visited and reports whether this call did so.
func (g *Guard) TryVisit(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = struct{}{}
	return true
}

// Len returns the number of visited keys.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// Policy decides whether a node is expanded.
type Policy interface {
	// ExceedsDepth reports whether depth is beyond the limit.
	ExceedsDepth(depth int) bool
	// Exclude reports whether the node must not be expanded.
	Exclude(a *model.Address) bool
	// TryVisit marks key visited, returning false if it already was.
	TryVisit(key string) bool
}

// Decision is the outcome of Admit.
type Decision int

const (
	// Admitted nodes are expanded.
	Admitted Decision = iota
	// AlreadyVisited nodes were expanded before.
	AlreadyVisited
	// TooDeep nodes are beyond the depth limit.
	TooDeep
	// Excluded nodes are sinks.
	Excluded
)

// String returns the label used in logs and metrics.
func (d Decision) String() string {
	switch d {
	case Admitted:
		return "scheduled"
	case AlreadyVisited:
		return "visited"
	case TooDeep:
		return "depth"
	case Excluded:
		return "sink"
	default:
		return "unknown"
	}
}

// Admit applies p to a candidate node. Checks run in order depth,
// exclusion, visit, so only admitted nodes are marked visited.
func Admit(p Policy, key string, depth int, a *model.Address) Decision {
	if p.ExceedsDepth(depth) {
		return TooDeep
	}
	if p.Exclude(a) {
		return Excluded
	}
	if !p.TryVisit(key) {
		return AlreadyVisited
	}
	return Admitted
}

// DepthPolicy is the standard Policy: a depth limit, a visit guard and
// sink exclusion.
type DepthPolicy struct {
	maxDepth int
	guard    *Guard
}

// NewDepthPolicy returns a policy with a fresh guard. maxDepth of
// Unbounded (or any negative value) disables the limit.
func NewDepthPolicy(maxDepth int) *DepthPolicy {
	return &DepthPolicy{maxDepth: maxDepth, guard: NewGuard()}
}

// MaxDepth returns the configured limit.
func (p *DepthPolicy) MaxDepth() int {
	return p.maxDepth
}

// ExceedsDepth implements Policy.
func (p *DepthPolicy) ExceedsDepth(depth int) bool {
	return p.maxDepth >= 0 && depth > p.maxDepth
}

// Exclude implements Policy. Contracts and entity-tagged addresses are
// sinks; a nil address is never excluded.
func (p *DepthPolicy) Exclude(a *model.Address) bool {
	return a.IsSink()
}

// TryVisit implements Policy.
func (p *DepthPolicy) TryVisit(key string) bool {
	return p.guard.TryVisit(key)
}

// Guard returns the visit guard.
func (p *DepthPolicy) Guard() *Guard {
	return p.guard
}
