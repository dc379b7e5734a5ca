package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/tokentrail/internal/config"
	"github.com/nao1215/tokentrail/internal/model"
	"github.com/nao1215/tokentrail/internal/reporter"
)

const testToken = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

type fakeTransfer struct {
	TransactionID string `json:"transaction_id"`
	BlockTS       int64  `json:"block_ts"`
	FromAddress   string `json:"from_address"`
	ToAddress     string `json:"to_address"`
	Quant         string `json:"quant"`
	ToTag         *struct {
		Tag string `json:"to_address_tag"`
	} `json:"to_address_tag,omitempty"`
}

func tagged(tag string) *struct {
	Tag string `json:"to_address_tag"`
} {
	return &struct {
		Tag string `json:"to_address_tag"`
	}{Tag: tag}
}

// newTronScanServer serves ROOT -> A -> EX(Binance) and ROOT -> B.
func newTronScanServer(t *testing.T) *httptest.Server {
	t.Helper()

	rows := []fakeTransfer{
		{TransactionID: "t1", BlockTS: 100, FromAddress: "ROOT", ToAddress: "A", Quant: "2000000000"},
		{TransactionID: "t2", BlockTS: 200, FromAddress: "ROOT", ToAddress: "B", Quant: "5000000"},
		{TransactionID: "t3", BlockTS: 300, FromAddress: "A", ToAddress: "EX", Quant: "1500000000", ToTag: tagged("Binance-hot")},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, _ := strconv.Atoi(q.Get("start"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		since, _ := strconv.ParseInt(q.Get("start_timestamp"), 10, 64)

		var match []fakeTransfer
		for _, row := range rows {
			if row.BlockTS < since {
				continue
			}
			if from := q.Get("fromAddress"); from != "" && row.FromAddress != from {
				continue
			}
			if to := q.Get("toAddress"); to != "" && row.ToAddress != to {
				continue
			}
			match = append(match, row)
		}
		lo := min(start, len(match))
		hi := min(lo+limit, len(match))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":           len(match),
			"token_transfers": match[lo:hi],
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Tron.DataSource = config.SourceTronScan
	cfg.TronScan.BaseURL = baseURL
	cfg.TronScan.RequestsPerSecond = 0
	cfg.Database.Dir = t.TempDir()
	cfg.OutputDir = filepath.Join(t.TempDir(), "output")
	cfg.MaxOutDepth = -1
	cfg.MonitorInterval = 10 * time.Millisecond
	cfg.Retry.PageDelay = time.Millisecond
	cfg.Retry.MetadataDelay = time.Millisecond
	cfg.Retry.MaxAttempts = 3
	return cfg
}

func TestAppEndToEnd(t *testing.T) {
	t.Parallel()

	srv := newTronScanServer(t)
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	a, err := New(ctx, cfg, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = a.Shutdown(ctx) }()

	if a.SourceName() != config.SourceTronScan || a.Chain() != model.ChainTRX {
		t.Fatalf("unexpected wiring %s/%s", a.SourceName(), a.Chain())
	}

	if err := a.Track(ctx, testToken, "ROOT"); err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	total, err := a.TotalFlow(ctx, "ROOT", model.TransferOut)
	if err != nil {
		t.Fatalf("TotalFlow() error = %v", err)
	}
	if total.Count != 2 || total.Amount != 2005 {
		t.Errorf("TotalFlow(ROOT) = %+v, want {2 2005}", total)
	}
	if total, _ := a.TotalFlow(ctx, "A", model.TransferOut); total.Amount != 1500 {
		t.Errorf("A was not crawled: %+v", total)
	}

	res, err := a.Report(ctx, reporter.Request{Token: testToken, Address: "ROOT", Level: -1})
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if got := len(res.Report.Statements["Binance"]); got != 1 {
		t.Fatalf("got %d Binance statements, want 1", got)
	}
	if len(res.Files) != 4 {
		t.Fatalf("Files = %v, want archive, top-N, statements and markdown", res.Files)
	}
	for _, f := range res.Files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing artifact %s: %v", f, err)
		}
		if !strings.Contains(filepath.Base(f), "-tronscan-trx-") {
			t.Errorf("artifact %s lacks source and chain", f)
		}
	}
	archive, err := os.ReadFile(res.Files[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(archive), "Binance-hot") {
		t.Errorf("archive = %s", archive)
	}

	rep, path, err := a.Mark(ctx, testToken, "ROOT", -1)
	if err != nil {
		t.Fatalf("Mark() error = %v", err)
	}
	if len(rep.Suspicious) != 0 {
		t.Errorf("unexpected suspicious addresses %v", rep.Suspicious)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("missing suspicious artifact: %v", err)
	}
}

func TestAppNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.Database.Dir = t.TempDir()
	if _, err := New(context.Background(), cfg); !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("New() error = %v, want ErrMissingAPIKey", err)
	}
}

func TestAppTrackReturnsWhenPoolDrains(t *testing.T) {
	t.Parallel()

	srv := newTronScanServer(t)
	cfg := testConfig(t, srv.URL)
	cfg.MonitorInterval = time.Hour
	ctx := context.Background()

	a, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = a.Shutdown(ctx) }()

	start := time.Now()
	if err := a.Track(ctx, testToken, "ROOT"); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 30*time.Second {
		t.Errorf("Track() returned after %v, want it to return once the pool drains", elapsed)
	}
}

func TestAppShutdownIsIdempotent(t *testing.T) {
	t.Parallel()

	srv := newTronScanServer(t)
	a, err := New(context.Background(), testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestAppValidateAddress(t *testing.T) {
	t.Parallel()

	srv := newTronScanServer(t)
	a, err := New(context.Background(), testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	if err := a.ValidateAddress(testToken); err != nil {
		t.Errorf("ValidateAddress(%s) error = %v", testToken, err)
	}
	if err := a.ValidateAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4"); !errors.Is(err, model.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress for an ETH address on TRX, got %v", err)
	}
}
