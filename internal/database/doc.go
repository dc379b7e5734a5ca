// Package database provides SQL storage for tokentrail.
//
// Each (data source, chain) scope owns five tables:
//   - transfer_edges: aggregated (from, to) rows for offset-paged sources
//   - transfers: per-transaction rows for watermark-paged sources
//   - addresses: contract flag, entity tag, health score and raw payloads
//   - address_stats: per-direction counterparty statistics
//   - track_offsets: the resumable crawl cursor of each (address, direction)
//
// A page of transfers and the cursor it advances are written in one
// transaction, so a crash never leaves the cursor ahead of the data.
//
// SQLite (modernc.org/sqlite, CGO-free) is the default backend; PostgreSQL
// (github.com/lib/pq) is selected with the "postgres" driver. Queries are
// written with ? placeholders and rebound for PostgreSQL.
package database
