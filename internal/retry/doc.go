// Package retry re-runs provider calls after transient failures.
//
// Crawl pages and metadata lookups use a fixed delay between attempts and,
// unless MaxAttempts is set, retry until the call succeeds or the context
// is cancelled.
package retry
