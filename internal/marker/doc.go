// Package marker flags addresses that receive many tiny payments, a common
// pattern of address-poisoning and dusting campaigns.
//
// MarkSuspicious walks the persisted outbound graph from a root. For each
// address it counts the inbound payers whose average amount per transfer
// is at most MaxTinyPayAmount, and records the address once that count
// reaches MinTinyPayAddresses. Contracts and entity-tagged addresses are
// not expanded.
package marker
