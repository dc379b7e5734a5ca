// Package config provides the configuration of tokentrail: crawl depth
// limits, worker pool size, data source selection, provider credentials,
// storage location and report thresholds.
//
// Values are resolved in this order, later sources winning:
//  1. NewConfig defaults
//  2. the YAML file found by FindConfigFile (.tokentrail)
//  3. environment variables (LOG_LEVEL, MAX_TRACK_OUT_DEPTH, MAX_TRACK_IN_DEPTH, WORKER_POOL_SIZE)
//  4. command line flags
package config
