package crawler

import (
	"testing"

	"github.com/nao1215/tokentrail/internal/model"
)

func TestPercentile(t *testing.T) {
	t.Parallel()

	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		p    float64
		want float64
	}{
		{p: 0, want: 1},
		{p: 50, want: 5},
		{p: 75, want: 8},
		{p: 90, want: 9},
		{p: 99, want: 10},
		{p: 100, want: 10},
	}
	for _, tt := range tests {
		if got := percentile(values, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 50); got != 0 {
		t.Errorf("percentile of empty set = %v, want 0", got)
	}
}

func TestComputeMetrics(t *testing.T) {
	t.Parallel()

	flows := []counterpartyFlow{
		{Address: "a", Flow: model.FlowInfo{Count: 1, Amount: 10}},
		{Address: "b", Flow: model.FlowInfo{Count: 3, Amount: 30}},
		{Address: "c", Flow: model.FlowInfo{Count: 0, Amount: 5}},
	}
	m := computeMetrics(flows)

	if m.Counterparties != 3 {
		t.Errorf("Counterparties = %d", m.Counterparties)
	}
	if m.TxnCount.Mean != 1 {
		t.Errorf("TxnCount.Mean = %v, want round(4/3) = 1", m.TxnCount.Mean)
	}
	if m.TotalAmount.Mean != 15 {
		t.Errorf("TotalAmount.Mean = %v, want 15", m.TotalAmount.Mean)
	}
	if m.AvgTxnAmount.Mean != 11.25 {
		t.Errorf("AvgTxnAmount.Mean = %v, want 45/4", m.AvgTxnAmount.Mean)
	}
	// averages: 10, 10, 5 (a zero count counts as one transfer)
	if m.AvgTxnAmount.P50 != 10 || m.AvgTxnAmount.P99 != 10 {
		t.Errorf("AvgTxnAmount = %+v", m.AvgTxnAmount)
	}
	if m.TotalAmount.P50 != 10 || m.TotalAmount.P90 != 30 {
		t.Errorf("TotalAmount = %+v", m.TotalAmount)
	}
	if got := computeMetrics(nil); got.Counterparties != 0 {
		t.Errorf("empty metrics = %+v", got)
	}
}

func TestCashOutFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		metrics model.FlowMetrics
		want    float64
	}{
		{
			name:    "many small payouts",
			metrics: model.FlowMetrics{Counterparties: 500, AvgTxnAmount: model.Percentiles{P75: 800}},
			want:    800,
		},
		{
			name:    "too few counterparties",
			metrics: model.FlowMetrics{Counterparties: 499, AvgTxnAmount: model.Percentiles{P75: 800}},
		},
		{
			name:    "large payouts",
			metrics: model.FlowMetrics{Counterparties: 1000, AvgTxnAmount: model.Percentiles{P75: 1000}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := cashOutFilter(tt.metrics); got != tt.want {
				t.Errorf("cashOutFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}
