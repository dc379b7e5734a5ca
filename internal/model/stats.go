package model

// Percentiles summarises one metric over a set of counterparties.
type Percentiles struct {
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P90  float64 `json:"p90"`
	P99  float64 `json:"p99"`
	Mean float64 `json:"mean"`
}

// FlowMetrics are the per-counterparty statistics computed after a crawl
// of one address in one direction.
type FlowMetrics struct {
	Counterparties int         `json:"counterparties"`
	TxnCount       Percentiles `json:"txnCount"`
	TotalAmount    Percentiles `json:"totalAmount"`
	AvgTxnAmount   Percentiles `json:"avgTxnAmount"`
}
