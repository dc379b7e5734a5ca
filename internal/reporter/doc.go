// Package reporter walks persisted transfer edges from a root address and
// summarises where the money went.
//
// The walk follows outbound edges (inbound for TransferIn requests) up to
// a level limit and keeps a signed net-flow tally per address: the sender
// of every hop is debited and the receiver credited. Paths that end at an
// entity-tagged address are archived; those that end at a tracked
// exchange with a large enough final hop become flow statements. The walk
// never expands sinks.
package reporter
