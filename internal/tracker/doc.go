// Package tracker turns crawl results into new crawl tasks.
//
// The tracker owns the live frontier of a track run. It schedules the
// root address, receives the counterparties every crawl discovers, and
// schedules each of them one hop further unless it is a sink, already
// scheduled, or beyond the depth limit of its direction.
package tracker
