package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "tokentrail"

	// DefaultLogLevel keeps crawl progress visible without debug noise.
	DefaultLogLevel = "info"

	// DefaultChain is the chain used when none is given.
	DefaultChain = "TRX"

	// DefaultWorkerPoolSize is the number of crawl tasks run concurrently.
	// It is also the fan-out limit of report and mark walks.
	DefaultWorkerPoolSize = 10

	// DefaultMaxOutDepth is the outbound hop limit of track runs.
	DefaultMaxOutDepth = 3

	// DefaultMaxInDepth disables inbound tracking unless configured.
	DefaultMaxInDepth = 0

	// DefaultMinCollectTransferAmount is the minimum hop amount for an
	// exchange flow statement.
	DefaultMinCollectTransferAmount = 1000

	// DefaultOutputDir receives report and mark artifacts.
	DefaultOutputDir = "./output"

	// DefaultAddressCacheSize bounds the in-memory address metadata cache.
	DefaultAddressCacheSize = 100_000

	// DefaultMonitorInterval is the pool status poll interval of track runs.
	DefaultMonitorInterval = 15 * time.Second

	// DefaultRiskyHealthScore is the health score below which a root's
	// inbound edges are crawled too.
	DefaultRiskyHealthScore = 6.0

	// DefaultPageRetryDelay is the pause before re-fetching a failed page.
	DefaultPageRetryDelay = 1500 * time.Millisecond

	// DefaultMetadataRetryDelay is the pause before re-fetching failed metadata.
	DefaultMetadataRetryDelay = 1 * time.Second

	// DefaultOKLinkBaseURL is the OKLink API origin.
	DefaultOKLinkBaseURL = "https://www.oklink.com"

	// DefaultTronScanBaseURL is the TronScan API origin.
	DefaultTronScanBaseURL = "https://apilist.tronscanapi.com"

	// DefaultRequestsPerSecond paces each provider client.
	DefaultRequestsPerSecond = 5

	// DefaultHTTPTimeout bounds one provider request.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultTokenDecimals matches USDT on TRON.
	DefaultTokenDecimals = 6

	// Data source names.
	SourceOKLink   = "oklink"
	SourceTronScan = "tronscan"

	// Database driver names.
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultExchanges are the exchanges that get dedicated flow statements.
var DefaultExchanges = []string{"Binance", "Kucoin", "Huobi", "OKX", "MXC"}

// Config holds every option of tokentrail. It is created once by the CLI
// and passed down explicitly; nothing reads configuration from globals.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogPath redirects logs to a file. Empty logs to stderr.
	LogPath string `yaml:"log_path,omitempty"`

	// Verbose forces debug logging. Set from --verbose only.
	Verbose bool `yaml:"-"`

	// Chain is TRX or ETH.
	Chain string `yaml:"chain"`

	// WorkerPoolSize is the crawl concurrency and the walk fan-out limit.
	WorkerPoolSize int `yaml:"worker_pool_size"`

	// MaxOutDepth and MaxInDepth bound track runs per direction.
	// -1 is unbounded and 0 disables the direction.
	MaxOutDepth int `yaml:"max_out_depth"`
	MaxInDepth  int `yaml:"max_in_depth"`

	// SkipZeroTransfer drops counterparties whose total amount is zero.
	SkipZeroTransfer bool `yaml:"skip_zero_transfer"`

	// MinCollectTransferAmount is the minimum amount of the hop into an
	// exchange for the path to become a flow statement.
	MinCollectTransferAmount float64 `yaml:"min_collect_transfer_amount"`

	// OutputDir receives report and mark artifacts.
	OutputDir string `yaml:"output_dir"`

	// AddressCacheSize is the LRU capacity of the address metadata cache.
	AddressCacheSize int `yaml:"address_cache_size"`

	// MonitorInterval is how often track runs log pool status.
	MonitorInterval time.Duration `yaml:"monitor_interval"`

	// RiskyHealthScore triggers an inbound crawl of roots scoring below it.
	// 0 disables the check.
	RiskyHealthScore float64 `yaml:"risky_health_score"`

	// Exchanges are the exchanges that get flow statements.
	Exchanges []string `yaml:"exchanges"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// Proxy is a SOCKS5 "host:port" used for provider requests.
	Proxy string `yaml:"proxy,omitempty"`

	Database DatabaseConfig `yaml:"database"`
	Retry    RetryConfig    `yaml:"retry"`
	OKLink   OKLinkConfig   `yaml:"oklink"`
	TronScan TronScanConfig `yaml:"tronscan"`
	Tron     TronConfig     `yaml:"tron"`

	// ConfigFilePath is the file the configuration was loaded from, if any.
	ConfigFilePath string `yaml:"-"`
}

// NewConfig creates a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		LogLevel:                 DefaultLogLevel,
		Chain:                    DefaultChain,
		WorkerPoolSize:           DefaultWorkerPoolSize,
		MaxOutDepth:              DefaultMaxOutDepth,
		MaxInDepth:               DefaultMaxInDepth,
		SkipZeroTransfer:         true,
		MinCollectTransferAmount: DefaultMinCollectTransferAmount,
		OutputDir:                DefaultOutputDir,
		AddressCacheSize:         DefaultAddressCacheSize,
		MonitorInterval:          DefaultMonitorInterval,
		RiskyHealthScore:         DefaultRiskyHealthScore,
		Exchanges:                append([]string(nil), DefaultExchanges...),
		Database: DatabaseConfig{
			Driver: DriverSQLite,
		},
		Retry: RetryConfig{
			PageDelay:     DefaultPageRetryDelay,
			MetadataDelay: DefaultMetadataRetryDelay,
		},
		OKLink: OKLinkConfig{
			BaseURL:           DefaultOKLinkBaseURL,
			RequestsPerSecond: DefaultRequestsPerSecond,
			Timeout:           DefaultHTTPTimeout,
		},
		TronScan: TronScanConfig{
			BaseURL:           DefaultTronScanBaseURL,
			RequestsPerSecond: DefaultRequestsPerSecond,
			Timeout:           DefaultHTTPTimeout,
			TokenDecimals:     DefaultTokenDecimals,
		},
		Tron: TronConfig{
			DataSource: SourceOKLink,
		},
	}
}

// XDGDataDir returns the XDG data directory for tokentrail.
// On Linux: ~/.local/share/tokentrail
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for tokentrail.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DataSource returns the provider used for the configured chain.
// ETH is only served by OKLink.
func (c *Config) DataSource() string {
	if strings.EqualFold(c.Chain, "ETH") {
		return SourceOKLink
	}
	return strings.ToLower(c.Tron.DataSource)
}

// DatabaseDir returns the SQLite directory, falling back to the XDG data dir.
func (c *Config) DatabaseDir() string {
	if c.Database.Dir != "" {
		return c.Database.Dir
	}
	return XDGDataDir()
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	switch strings.ToUpper(c.Chain) {
	case "TRX", "ETH":
	default:
		return ErrInvalidChain
	}

	switch c.DataSource() {
	case SourceOKLink:
		if c.OKLink.APIKey == "" {
			return ErrMissingAPIKey
		}
	case SourceTronScan:
	default:
		return ErrInvalidDataSource
	}

	if c.WorkerPoolSize <= 0 {
		return ErrInvalidWorkerPoolSize
	}
	if c.MaxOutDepth < -1 || c.MaxInDepth < -1 {
		return ErrInvalidDepth
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrInvalidLogLevel
	}

	if c.AddressCacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	if c.MonitorInterval <= 0 {
		return ErrInvalidMonitorInterval
	}
	if c.Retry.PageDelay < 0 || c.Retry.MetadataDelay < 0 || c.Retry.MaxAttempts < 0 {
		return ErrInvalidRetry
	}

	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return ErrInvalidDatabase
		}
	default:
		return ErrInvalidDatabase
	}

	if c.TronScan.TokenDecimals < 0 {
		return ErrInvalidTokenDecimals
	}
	if c.MinCollectTransferAmount < 0 || c.RiskyHealthScore < 0 {
		return ErrInvalidThreshold
	}
	return nil
}
