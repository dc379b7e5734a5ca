package model

// TransferEdge is the aggregate of every transfer of one token from one
// address to another.
type TransferEdge struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	TotalValue float64 `json:"totalValue"`
	TxnCount   int64   `json:"txnCount"`
	FirstTxnTS int64   `json:"firstTxnTs"`
	LastTxnTS  int64   `json:"lastTxnTs"`
}

// Counterparty returns the endpoint opposite to address in direction d.
func (e TransferEdge) Counterparty(d Direction) string {
	if d == TransferIn {
		return e.From
	}
	return e.To
}

// Transfer is one token movement returned by a provider page.
//
// Aggregated sources fill TotalValue/TxnCount and leave TxnHash empty;
// per-transaction sources set TxnHash, Block and a TxnCount of 1.
type Transfer struct {
	TransferEdge

	TxnHash string `json:"txnHash,omitempty"`
	Block   int64  `json:"block,omitempty"`

	// FromHint and ToHint carry endpoint metadata when the provider
	// includes it in the transfer row.
	FromHint *AddressHint `json:"-"`
	ToHint   *AddressHint `json:"-"`
}

// FlowInfo is the transfer count and total amount between two addresses
// (or for one address in one direction).
type FlowInfo struct {
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

// AvgAmount returns the average amount per transaction. A zero count is
// treated as a single transaction.
func (f FlowInfo) AvgAmount() float64 {
	if f.Count <= 0 {
		return f.Amount
	}
	return f.Amount / float64(f.Count)
}

// Layout tells how a source stores transfers.
type Layout int

const (
	// LayoutAggregated stores one row per (from, to) pair and pages with a numeric offset.
	LayoutAggregated Layout = iota
	// LayoutPerTransaction stores one row per transfer and pages from a block-timestamp watermark.
	LayoutPerTransaction
)

// String returns the layout name.
func (l Layout) String() string {
	if l == LayoutPerTransaction {
		return "per-transaction"
	}
	return "aggregated"
}
