package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/tokentrail/internal/database"
	"github.com/nao1215/tokentrail/internal/model"
	"github.com/nao1215/tokentrail/internal/provider"
	"github.com/nao1215/tokentrail/internal/retry"
)

const (
	testToken = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	rootAddr  = "ROOT"
)

// fakeSource serves canned transfers for the root address.
type fakeSource struct {
	layout model.Layout

	mu       sync.Mutex
	rows     map[model.Direction][]model.Transfer
	failures int
	// failWith replaces the default network error of failed queries.
	failWith error
	queries  []provider.Query
}

func (f *fakeSource) Name() string         { return "fake" }
func (f *fakeSource) Layout() model.Layout { return f.layout }

func (f *fakeSource) Transfers(_ context.Context, q provider.Query) (*provider.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, q)
	if f.failures > 0 {
		f.failures--
		if f.failWith != nil {
			return nil, f.failWith
		}
		return nil, errors.New("connection reset by peer")
	}

	var rows []model.Transfer
	for _, r := range f.rows[q.Direction] {
		if f.layout == model.LayoutPerTransaction && r.LastTxnTS < q.Since {
			continue
		}
		rows = append(rows, r)
	}
	page := &provider.Page{}
	if f.layout == model.LayoutPerTransaction {
		page.Total = int64(len(rows))
	}
	start := min(int(q.Offset), len(rows))
	end := min(start+q.Limit, len(rows))
	page.Transfers = rows[start:end]
	return page, nil
}

func (f *fakeSource) Queries() []provider.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

// fakeMeta returns fixed metadata and counts lookups per address.
type fakeMeta struct {
	mu     sync.Mutex
	scores map[string]float64
	tags   map[string]string
	calls  map[string]int
}

func (m *fakeMeta) AddressInfo(_ context.Context, _, addr string) (*model.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[addr]++
	score, ok := m.scores[addr]
	if !ok {
		score = 80
	}
	return &model.Address{Address: addr, EntityTag: m.tags[addr], HealthScore: &score}, nil
}

func (m *fakeMeta) Calls(addr string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[addr]
}

// recordingObserver collects every reported counterparty.
type recordingObserver struct {
	mu    sync.Mutex
	calls []observed
}

type observed struct {
	task  model.CrawlTask
	addrs []string
}

func (o *recordingObserver) OnNewCounterAddresses(_ context.Context, task model.CrawlTask, addrs []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, observed{task: task, addrs: slices.Clone(addrs)})
}

func (o *recordingObserver) last() observed {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.calls) == 0 {
		return observed{}
	}
	return o.calls[len(o.calls)-1]
}

type stores struct {
	db        *database.DB
	edges     *database.EdgeStore
	txns      *database.TxnStore
	addresses *database.AddressStore
}

func setupStores(t *testing.T) stores {
	t.Helper()

	db, err := database.Open(database.Options{Driver: database.DriverSQLite, Dir: t.TempDir(), CreateIfNotExists: true, EnableWAL: true})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	scope := database.Scope{Source: "fake", Chain: "trx"}
	if err := db.EnsureSchema(context.Background(), scope); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	edges, err := database.NewEdgeStore(db, scope)
	if err != nil {
		t.Fatal(err)
	}
	txns, err := database.NewTxnStore(db, scope)
	if err != nil {
		t.Fatal(err)
	}
	addresses, err := database.NewAddressStore(db, scope, 1000)
	if err != nil {
		t.Fatal(err)
	}
	return stores{db: db, edges: edges, txns: txns, addresses: addresses}
}

func outEdge(to string, amount float64, count int64, ts int64) model.Transfer {
	return model.Transfer{TransferEdge: model.TransferEdge{
		From: rootAddr, To: to, TotalValue: amount, TxnCount: count, FirstTxnTS: ts, LastTxnTS: ts,
	}}
}

func fastRetry() Option {
	return WithRetry(time.Millisecond, time.Millisecond, 0)
}

func TestNewRejectsLayoutMismatch(t *testing.T) {
	t.Parallel()

	s := setupStores(t)
	src := &fakeSource{layout: model.LayoutPerTransaction}
	_, err := New(src, s.edges, s.addresses)
	if !errors.Is(err, ErrLayoutMismatch) {
		t.Errorf("expected ErrLayoutMismatch, got %v", err)
	}
}

func TestCrawlResumesFromOffset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupStores(t)

	all := make([]model.Transfer, 0, 500)
	for i := range 500 {
		all = append(all, outEdge(fmt.Sprintf("C%03d", i), 5000, 2, int64(i)))
	}
	// A previous run stored the first 200 edges before stopping.
	if err := s.edges.SaveTransfers(ctx, rootAddr, model.TransferOut, all[:200], 200); err != nil {
		t.Fatalf("failed to seed edges: %v", err)
	}

	src := &fakeSource{layout: model.LayoutAggregated, rows: map[model.Direction][]model.Transfer{model.TransferOut: all}}
	obs := &recordingObserver{}
	c, err := New(src, s.edges, s.addresses, fastRetry())
	if err != nil {
		t.Fatal(err)
	}
	c.SetObserver(obs)

	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	queries := src.Queries()
	if len(queries) == 0 || queries[0].Offset != 200 {
		t.Fatalf("first query = %+v, want offset 200", queries)
	}
	// 200, 400, 600 (empty)
	if len(queries) != 3 {
		t.Errorf("got %d queries, want 3", len(queries))
	}

	offset, found, err := s.addresses.TrackOffset(ctx, rootAddr, model.TransferOut)
	if err != nil || !found || offset != 500 {
		t.Errorf("TrackOffset() = %d, %v, %v; want 500", offset, found, err)
	}

	got := obs.last().addrs
	if len(got) != 500 {
		t.Fatalf("observer got %d counterparties, want 500", len(got))
	}

	stats, err := s.addresses.Stats(ctx, rootAddr, model.TransferOut)
	if err != nil || stats == nil {
		t.Fatalf("Stats() = %v, %v", stats, err)
	}
	if stats.Counterparties != 500 || stats.TxnCount.Mean != 2 || stats.AvgTxnAmount.Mean != 2500 {
		t.Errorf("stats = %+v", stats)
	}

	// A second run re-applies nothing new and keeps the totals.
	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("second Crawl() error = %v", err)
	}
	info, err := s.edges.TotalFlow(ctx, rootAddr, model.TransferOut)
	if err != nil {
		t.Fatal(err)
	}
	if info.Count != 1000 || info.Amount != 2_500_000 {
		t.Errorf("TotalFlow() = %+v, want 1000 txns / 2500000", info)
	}
}

func TestCrawlCashOutFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupStores(t)

	var rows []model.Transfer
	var big []string
	for i := range 374 {
		rows = append(rows, outEdge(fmt.Sprintf("S%03d", i), 100, 1, int64(i)))
	}
	for i := range 126 {
		addr := fmt.Sprintf("B%03d", i)
		big = append(big, addr)
		rows = append(rows, outEdge(addr, float64(800+i), 1, int64(1000+i)))
	}

	src := &fakeSource{layout: model.LayoutAggregated, rows: map[model.Direction][]model.Transfer{model.TransferOut: rows}}
	obs := &recordingObserver{}
	c, err := New(src, s.edges, s.addresses, fastRetry())
	if err != nil {
		t.Fatal(err)
	}
	c.SetObserver(obs)

	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	got := obs.last().addrs
	slices.Sort(got)
	slices.Sort(big)
	if !slices.Equal(got, big) {
		t.Errorf("followed %d counterparties, want the %d large ones", len(got), len(big))
	}
}

func TestCrawlInboundIsNotFiltered(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupStores(t)

	var rows []model.Transfer
	for i := range 600 {
		rows = append(rows, model.Transfer{TransferEdge: model.TransferEdge{
			From: fmt.Sprintf("P%03d", i), To: rootAddr, TotalValue: 1, TxnCount: 1, FirstTxnTS: int64(i),
		}})
	}
	src := &fakeSource{layout: model.LayoutAggregated, rows: map[model.Direction][]model.Transfer{model.TransferIn: rows}}
	obs := &recordingObserver{}
	c, err := New(src, s.edges, s.addresses, fastRetry())
	if err != nil {
		t.Fatal(err)
	}
	c.SetObserver(obs)

	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr, Direction: model.TransferIn}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if got := len(obs.last().addrs); got != 600 {
		t.Errorf("observer got %d counterparties, want 600", got)
	}
}

func TestCrawlRetriesFailedPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupStores(t)

	src := &fakeSource{
		layout:   model.LayoutAggregated,
		rows:     map[model.Direction][]model.Transfer{model.TransferOut: {outEdge("X", 10, 1, 1)}},
		failures: 2,
	}
	c, err := New(src, s.edges, s.addresses, fastRetry())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	// two failures, the page, the empty page
	if got := len(src.Queries()); got != 4 {
		t.Errorf("got %d queries, want 4", got)
	}
	for _, q := range src.Queries()[:3] {
		if q.Offset != 0 {
			t.Errorf("retried query offset = %d, want 0", q.Offset)
		}
	}
}

func TestCrawlRetryStopsOnCancel(t *testing.T) {
	t.Parallel()

	s := setupStores(t)
	src := &fakeSource{layout: model.LayoutAggregated, failures: 1 << 30}
	c, err := New(src, s.edges, s.addresses, WithRetry(5*time.Millisecond, time.Millisecond, 0))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
}

func TestCrawlRejectedCredentials(t *testing.T) {
	t.Parallel()

	unauthorized := &provider.StatusError{Provider: "fake", Endpoint: "transfers", HTTPStatus: http.StatusUnauthorized}

	t.Run("capped retries stop at once", func(t *testing.T) {
		t.Parallel()

		s := setupStores(t)
		src := &fakeSource{layout: model.LayoutAggregated, failures: 1 << 30, failWith: unauthorized}
		c, err := New(src, s.edges, s.addresses, WithRetry(time.Millisecond, time.Millisecond, 5))
		if err != nil {
			t.Fatal(err)
		}

		err = c.Crawl(context.Background(), model.CrawlTask{Token: testToken, Address: rootAddr})
		var se *provider.StatusError
		if !errors.As(err, &se) || se.HTTPStatus != http.StatusUnauthorized {
			t.Fatalf("expected the unauthorized status error, got %v", err)
		}
		if errors.Is(err, retry.ErrExhausted) {
			t.Errorf("expected no retries, got %v", err)
		}
		if got := len(src.Queries()); got != 1 {
			t.Errorf("got %d queries, want 1", got)
		}
	})

	t.Run("unbounded retries keep trying", func(t *testing.T) {
		t.Parallel()

		s := setupStores(t)
		src := &fakeSource{
			layout:   model.LayoutAggregated,
			rows:     map[model.Direction][]model.Transfer{model.TransferOut: {outEdge("X", 10, 1, 1)}},
			failures: 2,
			failWith: unauthorized,
		}
		c, err := New(src, s.edges, s.addresses, fastRetry())
		if err != nil {
			t.Fatal(err)
		}

		if err := c.Crawl(context.Background(), model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if got := len(src.Queries()); got != 4 {
			t.Errorf("got %d queries, want 4", got)
		}
	})
}

func TestCrawlPerTransactionWatermark(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupStores(t)

	var rows []model.Transfer
	for i := range 5 {
		ts := int64(100 * (i + 1))
		tr := model.Transfer{
			TransferEdge: model.TransferEdge{From: rootAddr, To: fmt.Sprintf("C%d", i%3), TotalValue: 10, TxnCount: 1, FirstTxnTS: ts, LastTxnTS: ts},
			TxnHash:      fmt.Sprintf("h%d", i),
			ToHint:       &model.AddressHint{},
		}
		if i == 1 {
			tr.ToHint.EntityTag = "Binance"
		}
		rows = append(rows, tr)
	}

	src := &fakeSource{layout: model.LayoutPerTransaction, rows: map[model.Direction][]model.Transfer{model.TransferOut: rows}}
	obs := &recordingObserver{}
	c, err := New(src, s.txns, s.addresses, fastRetry(), WithPageSize(2))
	if err != nil {
		t.Fatal(err)
	}
	c.SetObserver(obs)

	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	// 0, 2, 4 and then the reported total is reached.
	if got := len(src.Queries()); got != 3 {
		t.Errorf("got %d queries, want 3", got)
	}
	mark, found, err := s.addresses.TrackOffset(ctx, rootAddr, model.TransferOut)
	if err != nil || !found || mark != 500 {
		t.Errorf("watermark = %d, %v, %v; want 500", mark, found, err)
	}

	info, err := s.txns.TotalFlow(ctx, rootAddr, model.TransferOut)
	if err != nil || info.Count != 5 || info.Amount != 50 {
		t.Errorf("TotalFlow() = %+v, %v", info, err)
	}

	got := obs.last().addrs
	slices.Sort(got)
	if !slices.Equal(got, []string{"C0", "C1", "C2"}) {
		t.Errorf("observer got %v", got)
	}

	tagged, err := s.addresses.Get(ctx, "C1")
	if err != nil || tagged == nil || tagged.EntityTag != "Binance" {
		t.Errorf("hint tag not stored: %+v, %v", tagged, err)
	}

	// Resuming starts from the watermark and replays known counterparties first.
	resume := &recordingObserver{}
	c.SetObserver(resume)
	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("second Crawl() error = %v", err)
	}
	queries := src.Queries()
	if q := queries[3]; q.Since != 500 || q.Offset != 0 {
		t.Errorf("resumed query = %+v, want since 500 offset 0", q)
	}
	if len(resume.calls) != 2 || len(resume.calls[0].addrs) != 3 {
		t.Errorf("resume observer calls = %+v", resume.calls)
	}
	info, _ = s.txns.TotalFlow(ctx, rootAddr, model.TransferOut)
	if info.Count != 5 {
		t.Errorf("re-fetched transfers were stored twice: %+v", info)
	}
}

func TestCrawlFetchesMetadataOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupStores(t)

	var rows []model.Transfer
	for i := range 20 {
		rows = append(rows, outEdge("HUB", 10, 1, int64(i)))
		rows[i].To = fmt.Sprintf("C%02d", i%4)
	}
	src := &fakeSource{layout: model.LayoutAggregated, rows: map[model.Direction][]model.Transfer{model.TransferOut: rows}}
	meta := &fakeMeta{tags: map[string]string{"C01": "Huobi 12"}}
	c, err := New(src, s.edges, s.addresses, fastRetry(), WithMetadataSource(meta))
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	for _, addr := range []string{rootAddr, "C00", "C01", "C02", "C03"} {
		if got := meta.Calls(addr); got != 1 {
			t.Errorf("metadata of %s fetched %d times, want 1", addr, got)
		}
	}
	a, err := s.addresses.Get(ctx, "C01")
	if err != nil || a == nil || a.EntityTag != "Huobi 12" || !a.HasHealthScore() {
		t.Errorf("stored metadata = %+v, %v", a, err)
	}
}

func TestCrawlRiskyAddressCrawlsInboundFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupStores(t)

	in := model.Transfer{TransferEdge: model.TransferEdge{From: "PAYER", To: rootAddr, TotalValue: 7, TxnCount: 1}}
	src := &fakeSource{layout: model.LayoutAggregated, rows: map[model.Direction][]model.Transfer{
		model.TransferOut: {outEdge("DEST", 9, 1, 1)},
		model.TransferIn:  {in},
	}}
	meta := &fakeMeta{scores: map[string]float64{rootAddr: 3}}
	obs := &recordingObserver{}
	c, err := New(src, s.edges, s.addresses, fastRetry(), WithMetadataSource(meta), WithRiskyHealthScore(6))
	if err != nil {
		t.Fatal(err)
	}
	c.SetObserver(obs)

	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	queries := src.Queries()
	if len(queries) == 0 || queries[0].Direction != model.TransferIn {
		t.Fatalf("first query = %+v, want inbound", queries)
	}
	flow, err := s.edges.FlowInfo(ctx, "PAYER", rootAddr)
	if err != nil || flow.Amount != 7 {
		t.Errorf("inbound edge not persisted: %+v, %v", flow, err)
	}
	if len(obs.calls) != 1 || obs.calls[0].task.Direction != model.TransferOut || !slices.Equal(obs.calls[0].addrs, []string{"DEST"}) {
		t.Errorf("observer calls = %+v, want only the outbound counterparty", obs.calls)
	}
}

func TestCrawlSkipZero(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := setupStores(t)

	src := &fakeSource{layout: model.LayoutAggregated, rows: map[model.Direction][]model.Transfer{
		model.TransferOut: {outEdge("ZERO", 0, 1, 1), outEdge("PAID", 3, 1, 2)},
	}}
	obs := &recordingObserver{}
	c, err := New(src, s.edges, s.addresses, fastRetry(), WithSkipZero(true))
	if err != nil {
		t.Fatal(err)
	}
	c.SetObserver(obs)

	if err := c.Crawl(ctx, model.CrawlTask{Token: testToken, Address: rootAddr}); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if got := obs.last().addrs; !slices.Equal(got, []string{"PAID"}) {
		t.Errorf("observer got %v, want [PAID]", got)
	}
}
