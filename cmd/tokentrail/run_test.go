package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/tokentrail/internal/config"
)

func TestApplyTrackFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantOut int
		wantIn  int
		wantW   int
	}{
		{"no flags keeps config", nil, 5, 2, 7},
		{"out depth", []string{"--out-depth", "-1"}, -1, 2, 7},
		{"in depth and workers", []string{"--in-depth", "0", "-w", "3"}, 5, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewTrackCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			cfg := config.NewConfig()
			cfg.MaxOutDepth, cfg.MaxInDepth, cfg.WorkerPoolSize = 5, 2, 7

			if err := applyTrackFlags(cmd, cfg); err != nil {
				t.Fatalf("applyTrackFlags: %v", err)
			}
			if cfg.MaxOutDepth != tt.wantOut || cfg.MaxInDepth != tt.wantIn || cfg.WorkerPoolSize != tt.wantW {
				t.Errorf("got out=%d in=%d workers=%d, want out=%d in=%d workers=%d",
					cfg.MaxOutDepth, cfg.MaxInDepth, cfg.WorkerPoolSize, tt.wantOut, tt.wantIn, tt.wantW)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tokentrail.yaml")
	if err := os.WriteFile(path, []byte("chain: TRX\nworker_pool_size: 4\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("flags override the file", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		sub, _, err := root.Find([]string{"report"})
		if err != nil {
			t.Fatal(err)
		}
		if err := sub.ParseFlags([]string{"--config", path, "--chain", "ETH", "-v"}); err != nil {
			t.Fatal(err)
		}

		cfg, err := loadConfig(sub)
		if err != nil {
			t.Fatalf("loadConfig: %v", err)
		}
		if cfg.Chain != "ETH" {
			t.Errorf("chain = %q, want ETH", cfg.Chain)
		}
		if !cfg.Verbose {
			t.Error("expected verbose")
		}
		if cfg.WorkerPoolSize != 4 {
			t.Errorf("worker_pool_size = %d, want 4", cfg.WorkerPoolSize)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		t.Parallel()

		root := NewRootCmd()
		sub, _, err := root.Find([]string{"mark"})
		if err != nil {
			t.Fatal(err)
		}
		missing := filepath.Join(t.TempDir(), "nope.yaml")
		if err := sub.ParseFlags([]string{"--config", missing}); err != nil {
			t.Fatal(err)
		}
		if _, err := loadConfig(sub); err == nil {
			t.Error("expected an error for a missing config file")
		}
	})
}

func TestSetupLogger(t *testing.T) {
	t.Parallel()

	t.Run("stderr text logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		cfg := config.NewConfig()
		logger, closeLog, err := setupLogger(cfg, &buf)
		if err != nil {
			t.Fatal(err)
		}
		logger.Debug("hidden")
		logger.Info("crawl finished", "api_key", "0123456789abcdef")
		if err := closeLog(); err != nil {
			t.Fatal(err)
		}

		out := buf.String()
		if strings.Contains(out, "hidden") {
			t.Error("debug record written at info level")
		}
		if !strings.Contains(out, "crawl finished") {
			t.Errorf("missing info record: %q", out)
		}
		if strings.Contains(out, "0123456789abcdef") {
			t.Errorf("api key not redacted: %q", out)
		}
	})

	t.Run("verbose json file logger", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.Verbose = true
		cfg.LogPath = filepath.Join(t.TempDir(), "logs", "tokentrail.log")

		logger, closeLog, err := setupLogger(cfg, &bytes.Buffer{})
		if err != nil {
			t.Fatal(err)
		}
		logger.Debug("page stored", "offset", 50)
		if err := closeLog(); err != nil {
			t.Fatal(err)
		}

		content, err := os.ReadFile(cfg.LogPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(content), `"msg":"page stored"`) {
			t.Errorf("expected a JSON debug record, got %q", content)
		}
	})

	t.Run("unknown level", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.LogLevel = "loud"
		if _, _, err := setupLogger(cfg, &bytes.Buffer{}); err == nil {
			t.Error("expected an error for an unknown level")
		}
	})
}
