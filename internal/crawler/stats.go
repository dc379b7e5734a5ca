package crawler

import (
	"math"
	"slices"

	"github.com/nao1215/tokentrail/internal/model"
)

// Cash-out detection thresholds. An outbound fan-out to at least
// CashOutMinCounterparties addresses whose p75 average amount per
// transaction stays below CashOutMaxP75AvgAmount looks like a payout
// address; only its larger counterparties are followed.
const (
	CashOutMinCounterparties = 500
	CashOutMaxP75AvgAmount   = 1000
)

// counterpartyFlow is the aggregate between the crawled address and one
// counterparty.
type counterpartyFlow struct {
	Address string
	Flow    model.FlowInfo
}

// computeMetrics returns nearest-rank percentiles of the transfer count,
// the total amount and the average amount per transaction of flows.
func computeMetrics(flows []counterpartyFlow) model.FlowMetrics {
	n := len(flows)
	if n == 0 {
		return model.FlowMetrics{}
	}

	counts := make([]float64, 0, n)
	amounts := make([]float64, 0, n)
	avgs := make([]float64, 0, n)
	var sumCount int64
	var sumAmount float64
	for _, f := range flows {
		counts = append(counts, float64(f.Flow.Count))
		amounts = append(amounts, f.Flow.Amount)
		avgs = append(avgs, f.Flow.AvgAmount())
		sumCount += f.Flow.Count
		sumAmount += f.Flow.Amount
	}

	avgMean := sumAmount
	if sumCount > 0 {
		avgMean = sumAmount / float64(sumCount)
	}

	return model.FlowMetrics{
		Counterparties: n,
		TxnCount:       summarize(counts, math.Round(float64(sumCount)/float64(n))),
		TotalAmount:    summarize(amounts, math.Round(sumAmount/float64(n))),
		AvgTxnAmount:   summarize(avgs, avgMean),
	}
}

func summarize(values []float64, mean float64) model.Percentiles {
	slices.Sort(values)
	return model.Percentiles{
		P50:  percentile(values, 50),
		P75:  percentile(values, 75),
		P90:  percentile(values, 90),
		P99:  percentile(values, 99),
		Mean: mean,
	}
}

// percentile returns the nearest-rank p-th percentile of sorted.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	idx := int(math.Ceil(float64(n)*p/100)) - 1
	idx = max(0, min(idx, n-1))
	return sorted[idx]
}

// cashOutFilter returns the minimum average amount per transaction a
// counterparty needs to be followed. 0 means no filter.
func cashOutFilter(metrics model.FlowMetrics) float64 {
	if metrics.Counterparties >= CashOutMinCounterparties && metrics.AvgTxnAmount.P75 < CashOutMaxP75AvgAmount {
		return metrics.AvgTxnAmount.P75
	}
	return 0
}

// followTargets selects the counterparties handed to the observer.
func followTargets(flows []counterpartyFlow, minAvg float64, skipZero bool) []string {
	out := make([]string, 0, len(flows))
	for _, f := range flows {
		if skipZero && f.Flow.Amount == 0 {
			continue
		}
		if minAvg > 0 && f.Flow.AvgAmount() < minAvg {
			continue
		}
		out = append(out, f.Address)
	}
	return out
}
