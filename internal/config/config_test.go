package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig documents the defaults; changing one must be intentional.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default pool size is 10", func(t *testing.T) {
		t.Parallel()
		if cfg.WorkerPoolSize != 10 {
			t.Errorf("expected WorkerPoolSize 10, got %d", cfg.WorkerPoolSize)
		}
	})

	t.Run("default retry delays are 1.5s and 1s", func(t *testing.T) {
		t.Parallel()
		if cfg.Retry.PageDelay != 1500*time.Millisecond {
			t.Errorf("expected page delay 1.5s, got %v", cfg.Retry.PageDelay)
		}
		if cfg.Retry.MetadataDelay != time.Second {
			t.Errorf("expected metadata delay 1s, got %v", cfg.Retry.MetadataDelay)
		}
		if cfg.Retry.MaxAttempts != 0 {
			t.Errorf("expected unbounded retries, got %d", cfg.Retry.MaxAttempts)
		}
	})

	t.Run("default monitor interval is 15s", func(t *testing.T) {
		t.Parallel()
		if cfg.MonitorInterval != 15*time.Second {
			t.Errorf("expected 15s, got %v", cfg.MonitorInterval)
		}
	})

	t.Run("default exchanges", func(t *testing.T) {
		t.Parallel()
		if len(cfg.Exchanges) != 5 || cfg.Exchanges[0] != "Binance" {
			t.Errorf("unexpected exchanges %v", cfg.Exchanges)
		}
	})

	t.Run("default source is oklink on TRX", func(t *testing.T) {
		t.Parallel()
		if cfg.Chain != "TRX" || cfg.DataSource() != SourceOKLink {
			t.Errorf("unexpected chain/source %s/%s", cfg.Chain, cfg.DataSource())
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.OKLink.APIKey = "test-key"
		return cfg
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		if err := validConfig().Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	testCases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown chain", func(c *Config) { c.Chain = "BTC" }, ErrInvalidChain},
		{"unknown source", func(c *Config) { c.Tron.DataSource = "etherscan" }, ErrInvalidDataSource},
		{"oklink without key", func(c *Config) { c.OKLink.APIKey = "" }, ErrMissingAPIKey},
		{"zero pool size", func(c *Config) { c.WorkerPoolSize = 0 }, ErrInvalidWorkerPoolSize},
		{"depth below -1", func(c *Config) { c.MaxInDepth = -2 }, ErrInvalidDepth},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, ErrInvalidLogLevel},
		{"zero cache", func(c *Config) { c.AddressCacheSize = 0 }, ErrInvalidCacheSize},
		{"zero monitor interval", func(c *Config) { c.MonitorInterval = 0 }, ErrInvalidMonitorInterval},
		{"negative retry", func(c *Config) { c.Retry.MaxAttempts = -1 }, ErrInvalidRetry},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres }, ErrInvalidDatabase},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, ErrInvalidDatabase},
		{"negative decimals", func(c *Config) { c.TronScan.TokenDecimals = -1 }, ErrInvalidTokenDecimals},
		{"negative threshold", func(c *Config) { c.MinCollectTransferAmount = -1 }, ErrInvalidThreshold},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	t.Run("tronscan needs no oklink key", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.OKLink.APIKey = ""
		cfg.Tron.DataSource = SourceTronScan
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("ETH always uses oklink", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		cfg.Chain = "ETH"
		cfg.Tron.DataSource = SourceTronScan
		if cfg.DataSource() != SourceOKLink {
			t.Errorf("expected oklink, got %s", cfg.DataSource())
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("file values override defaults", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `log_level: debug
worker_pool_size: 4
max_out_depth: -1
retry:
  page_delay: 2s
tronscan:
  api_keys: [k1, k2]
tron:
  data_source: tronscan
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.LogLevel != "debug" || cfg.WorkerPoolSize != 4 || cfg.MaxOutDepth != -1 {
			t.Errorf("unexpected values %+v", cfg)
		}
		if cfg.Retry.PageDelay != 2*time.Second {
			t.Errorf("expected page delay 2s, got %v", cfg.Retry.PageDelay)
		}
		if cfg.Retry.MetadataDelay != DefaultMetadataRetryDelay {
			t.Errorf("missing key must keep default, got %v", cfg.Retry.MetadataDelay)
		}
		if len(cfg.TronScan.APIKeys) != 2 || cfg.DataSource() != SourceTronScan {
			t.Errorf("unexpected tronscan config %+v", cfg.TronScan)
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("expected ConfigFilePath %s, got %s", path, cfg.ConfigFilePath)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()
		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml is an error", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("worker_pool_size: [oops"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvLogLevel:       "warn",
		EnvMaxOutDepth:    "5",
		EnvMaxInDepth:     "-1",
		EnvWorkerPoolSize: "32",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := NewConfig()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.MaxOutDepth != 5 || cfg.MaxInDepth != -1 || cfg.WorkerPoolSize != 32 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}

	bad := func(k string) (string, bool) {
		if k == EnvWorkerPoolSize {
			return "many", true
		}
		return "", false
	}
	if err := NewConfig().ApplyEnv(bad); err == nil {
		t.Error("expected error for non-numeric WORKER_POOL_SIZE")
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %s, got %s", path, got)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile(filepath.Join(t.TempDir(), "missing")); got != "" {
			t.Errorf("expected empty, got %s", got)
		}
	})
}

func TestDatabaseDir(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cfg.DatabaseDir() != XDGDataDir() {
		t.Errorf("expected XDG fallback, got %s", cfg.DatabaseDir())
	}
	cfg.Database.Dir = "/tmp/tt"
	if cfg.DatabaseDir() != "/tmp/tt" {
		t.Errorf("expected explicit dir, got %s", cfg.DatabaseDir())
	}
}
