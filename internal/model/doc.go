// Package model defines the data structures shared by the crawler, the
// traversal engines and the storage layer of tokentrail.
//
// The main types are:
//   - Address: metadata of one on-chain address (contract flag, entity tag, health score)
//   - TransferEdge / Transfer: aggregated and per-transaction token movements
//   - CrawlTask: one (token, address, direction, depth) unit of crawl work
//   - FlowPath: an ordered, linked sequence of transfers used by reports
//
// Models live in their own package so that database, provider, crawler and
// reporter can all depend on them without import cycles.
package model
