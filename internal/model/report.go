package model

import "time"

// FlowStat is one row of the top-N net inflow summary.
type FlowStat struct {
	Address    string  `json:"address"`
	EntityTag  string  `json:"entityTag"`
	IsContract bool    `json:"isContract"`
	Amount     float64 `json:"amount"`
}

// FlowStatement is a flow path that touches a tracked exchange address.
type FlowStatement struct {
	Exchange        string `json:"exchange"`
	EntityTag       string `json:"entityTag"`
	ExchangeAddress string `json:"exchangeAddress"`
	// Hop is the step into (or, for inbound reports, out of) the exchange.
	Hop  FlowStep `json:"hop"`
	Path FlowPath `json:"flows"`
}

// ArchivedFlow is one path that reached an entity-tagged sink.
type ArchivedFlow struct {
	Flows     FlowPath `json:"flows"`
	EntityTag string   `json:"entityTag"`
}

// FlowReport is the result of one report run.
type FlowReport struct {
	Token       string                     `json:"token"`
	Address     string                     `json:"address"`
	Level       int                        `json:"level"`
	Direction   Direction                  `json:"-"`
	GeneratedAt time.Time                  `json:"generatedAt"`
	TopN        []FlowStat                 `json:"topN"`
	Statements  map[string][]FlowStatement `json:"statements"`
	// Archived counts the sink-reaching paths written to the archive.
	Archived int `json:"archived"`
	// Visited counts the addresses expanded by the walk.
	Visited int `json:"visited"`
}

// SuspiciousAddress is an address receiving many tiny payments.
type SuspiciousAddress struct {
	Address          string `json:"address"`
	NumPayInAddr     int    `json:"numPayInAddr"`
	NumTinyPayInAddr int    `json:"numTinyPayInAddr"`
}

// SuspiciousReport is the result of one mark run.
type SuspiciousReport struct {
	Token      string              `json:"token"`
	Address    string              `json:"address"`
	MaxLevel   int                 `json:"maxLevel"`
	Suspicious []SuspiciousAddress `json:"suspicious"`
}
