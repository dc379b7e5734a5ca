package config

import "time"

// DatabaseConfig selects and tunes the SQL store.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`

	// Dir is the directory of the SQLite file. Empty means the XDG data dir.
	Dir string `yaml:"dir,omitempty"`

	// DSN is the full data source name. Required for postgres; for sqlite
	// it overrides Dir.
	DSN string `yaml:"dsn,omitempty"`

	// MaxOpenConns caps the connection pool. SQLite always uses one connection.
	MaxOpenConns int `yaml:"max_open_conns,omitempty"`
}

// RetryConfig controls the fixed-delay retry of provider calls.
type RetryConfig struct {
	// PageDelay is the pause before re-fetching a failed transfer page.
	PageDelay time.Duration `yaml:"page_delay"`

	// MetadataDelay is the pause before re-fetching failed address metadata.
	MetadataDelay time.Duration `yaml:"metadata_delay"`

	// MaxAttempts caps attempts per call. 0 retries forever.
	MaxAttempts int `yaml:"max_attempts"`
}

// OKLinkConfig holds the OKLink money-flow API settings.
type OKLinkConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

// TronScanConfig holds the TronScan TRC-20 transfer API settings.
type TronScanConfig struct {
	BaseURL string `yaml:"base_url"`

	// APIKeys are rotated round-robin across requests.
	APIKeys           []string      `yaml:"api_keys,omitempty"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`

	// TokenDecimals scales raw transfer quantities. USDT-TRC20 uses 6.
	TokenDecimals int32 `yaml:"token_decimals"`
}

// TronConfig holds TRON-specific switches.
type TronConfig struct {
	// DataSource is "oklink" or "tronscan".
	DataSource string `yaml:"data_source"`
}
