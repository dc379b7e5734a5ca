package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments of one process.
type Metrics struct {
	registry *prometheus.Registry

	poolQueued    prometheus.Gauge
	poolRunning   prometheus.Gauge
	tasksTotal    *prometheus.CounterVec
	providerCalls *prometheus.CounterVec
	retries       *prometheus.CounterVec
	pages         *prometheus.CounterVec
	transfers     *prometheus.CounterVec
	scheduled     *prometheus.CounterVec
}

// New registers the instruments under namespace on a private registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		poolQueued: f.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_pool_queued_tasks", namespace),
			Help: "Crawl tasks waiting in the worker pool",
		}),
		poolRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_pool_running_tasks", namespace),
			Help: "Crawl tasks currently executing",
		}),
		tasksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_pool_tasks_total", namespace),
			Help: "Finished pool tasks by result",
		}, []string{"result"}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_provider_requests_total", namespace),
			Help: "Provider HTTP requests by provider, endpoint and result",
		}, []string{"provider", "endpoint", "result"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_retries_total", namespace),
			Help: "Retried provider calls by operation",
		}, []string{"operation"}),
		pages: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_pages_persisted_total", namespace),
			Help: "Transfer pages persisted by direction",
		}, []string{"direction"}),
		transfers: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_transfers_persisted_total", namespace),
			Help: "Transfer rows persisted by direction",
		}, []string{"direction"}),
		scheduled: f.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_tracker_decisions_total", namespace),
			Help: "Tracker frontier decisions by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetPoolStatus records the pool queue length and running count.
func (m *Metrics) SetPoolStatus(queued, running int) {
	if m == nil {
		return
	}
	m.poolQueued.Set(float64(queued))
	m.poolRunning.Set(float64(running))
}

// TaskFinished counts a pool task by outcome ("ok", "error", "panic").
func (m *Metrics) TaskFinished(result string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(result).Inc()
}

// ProviderRequest counts one provider HTTP call.
func (m *Metrics) ProviderRequest(provider, endpoint string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(provider, endpoint, result).Inc()
}

// Retry counts one retried call of operation ("page", "metadata").
func (m *Metrics) Retry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

// PagePersisted counts one stored page of n transfers.
func (m *Metrics) PagePersisted(direction string, n int) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(direction).Inc()
	m.transfers.WithLabelValues(direction).Add(float64(n))
}

// TrackerDecision counts a frontier outcome ("scheduled", "visited", "depth", "sink").
func (m *Metrics) TrackerDecision(outcome string) {
	if m == nil {
		return
	}
	m.scheduled.WithLabelValues(outcome).Inc()
}
