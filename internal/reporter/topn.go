package reporter

import (
	"cmp"
	"container/heap"
	"slices"

	"github.com/nao1215/tokentrail/internal/model"
)

// DefaultTopN is the size of the net inflow summary.
const DefaultTopN = 50

// statHeap is a min-heap of flow stats ordered by amount.
type statHeap []model.FlowStat

func (h statHeap) Len() int           { return len(h) }
func (h statHeap) Less(i, j int) bool { return h[i].Amount < h[j].Amount }
func (h statHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *statHeap) Push(x any)        { *h = append(*h, x.(model.FlowStat)) }
func (h *statHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topPositive returns the n addresses with the largest positive tally,
// largest first. Ties are ordered by address.
func topPositive(tally map[string]float64, n int) []model.FlowStat {
	if n <= 0 {
		return nil
	}
	h := make(statHeap, 0, n)
	for addr, amount := range tally {
		if amount <= 0 {
			continue
		}
		if h.Len() < n {
			heap.Push(&h, model.FlowStat{Address: addr, Amount: amount})
			continue
		}
		if h[0].Amount < amount {
			h[0] = model.FlowStat{Address: addr, Amount: amount}
			heap.Fix(&h, 0)
		}
	}

	out := []model.FlowStat(h)
	slices.SortFunc(out, func(a, b model.FlowStat) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Address, b.Address)
	})
	return out
}
