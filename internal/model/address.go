package model

import "encoding/json"

// Address holds the metadata known about one on-chain address.
//
// A record is created the first time the address is observed, refreshed
// when provider metadata arrives, and never deleted.
type Address struct {
	// Address is the chain-native address string.
	Address string `json:"address"`

	// IsContract is true for smart-contract accounts.
	IsContract bool `json:"isContract"`

	// EntityTag is a provider label such as "Binance: Hot Wallet".
	// An empty tag means the address is not attributed to a known entity.
	EntityTag string `json:"entityTag,omitempty"`

	// HealthScore is the provider risk score. Nil when never fetched.
	HealthScore *float64 `json:"healthScore,omitempty"`

	// TagInfo, HealthInfo and Statistics keep the raw provider payloads.
	TagInfo    json.RawMessage `json:"tagInfo,omitempty"`
	HealthInfo json.RawMessage `json:"healthInfo,omitempty"`
	Statistics json.RawMessage `json:"statistics,omitempty"`
}

// IsSink reports whether traversal must stop at this address.
// Contracts and entity-tagged addresses (exchanges, bridges, services)
// terminate a flow path.
func (a *Address) IsSink() bool {
	if a == nil {
		return false
	}
	return a.IsContract || a.EntityTag != ""
}

// HasHealthScore reports whether a provider health score is recorded.
func (a *Address) HasHealthScore() bool {
	return a != nil && a.HealthScore != nil
}

// AddressHint is the partial metadata that some providers attach to
// transfer rows. It lets the crawler record an endpoint without a
// dedicated metadata request.
type AddressHint struct {
	IsContract bool
	EntityTag  string
}
