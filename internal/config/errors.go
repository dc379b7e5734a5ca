package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers can match them with errors.Is.
var (
	// ErrInvalidChain is returned when the chain is neither TRX nor ETH.
	ErrInvalidChain = errors.New("invalid chain: must be TRX or ETH")

	// ErrInvalidDataSource is returned when the data source is unknown or
	// not available for the selected chain.
	ErrInvalidDataSource = errors.New("invalid data source: TRX supports oklink or tronscan, ETH supports oklink")

	// ErrInvalidWorkerPoolSize is returned when the worker pool size is not positive.
	ErrInvalidWorkerPoolSize = errors.New("invalid worker pool size: must be positive")

	// ErrInvalidDepth is returned when a depth limit is below -1.
	// -1 means unbounded and 0 disables the direction.
	ErrInvalidDepth = errors.New("invalid depth: must be -1 (unbounded) or non-negative")

	// ErrInvalidLogLevel is returned for an unknown log level name.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn or error")

	// ErrInvalidCacheSize is returned when the address cache size is not positive.
	ErrInvalidCacheSize = errors.New("invalid address cache size: must be positive")

	// ErrInvalidMonitorInterval is returned when the monitor interval is not positive.
	ErrInvalidMonitorInterval = errors.New("invalid monitor interval: must be positive")

	// ErrInvalidRetry is returned for negative retry delays or attempts.
	ErrInvalidRetry = errors.New("invalid retry settings: delays and max attempts must be non-negative")

	// ErrInvalidDatabase is returned for an unknown driver or a postgres
	// driver without a DSN.
	ErrInvalidDatabase = errors.New("invalid database settings: driver must be sqlite or postgres (postgres requires dsn)")

	// ErrMissingAPIKey is returned when the selected source needs an API key.
	ErrMissingAPIKey = errors.New("missing API key: oklink.api_key is required for the oklink data source")

	// ErrInvalidTokenDecimals is returned when token decimals are negative.
	ErrInvalidTokenDecimals = errors.New("invalid token decimals: must be non-negative")

	// ErrInvalidThreshold is returned for a negative amount threshold.
	ErrInvalidThreshold = errors.New("invalid threshold: min_collect_transfer_amount and risky_health_score must be non-negative")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
