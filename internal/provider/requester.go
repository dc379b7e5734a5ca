package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/nao1215/tokentrail/internal/metrics"
	"golang.org/x/time/rate"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 16 << 20

// requester performs paced JSON GET requests against one provider.
type requester struct {
	name    string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func newRequester(name, baseURL string, client *http.Client, rps float64, m *metrics.Metrics, logger *slog.Logger) *requester {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &requester{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
		logger:  logger,
	}
}

// getJSON waits for the limiter, issues GET baseURL+path?params and decodes
// the body into out. label names the endpoint in metrics and errors.
func (r *requester) getJSON(ctx context.Context, label, path string, params url.Values, header http.Header, out any) (err error) {
	defer func() { r.metrics.ProviderRequest(r.name, label, err) }()

	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	u := r.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", label, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	r.logger.Debug("provider request", "provider", r.name, "endpoint", label, "params", params.Encode())

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s request failed: %w", r.name, label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return &StatusError{Provider: r.name, Endpoint: label, HTTPStatus: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", r.name, label, err)
	}
	return nil
}

// keyRing hands out API keys round-robin. It is safe for concurrent use.
type keyRing struct {
	keys []string
	next atomic.Uint64
}

func newKeyRing(keys []string) *keyRing {
	var kept []string
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			kept = append(kept, k)
		}
	}
	return &keyRing{keys: kept}
}

// Next returns the next key, or "" when the ring is empty.
func (k *keyRing) Next() string {
	if len(k.keys) == 0 {
		return ""
	}
	i := k.next.Add(1) - 1
	return k.keys[i%uint64(len(k.keys))]
}
