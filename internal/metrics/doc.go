// Package metrics exposes Prometheus instruments for crawl progress.
//
// A nil *Metrics is valid and records nothing, so components accept it as
// an optional dependency.
package metrics
