package gateway

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics tracks gateway counters. Prometheus collectors back the
// /metrics endpoint; a few atomics back the /status snapshot without
// scraping our own registry.
type Metrics struct {
	Registry *prometheus.Registry

	updates        *prometheus.CounterVec
	authRequests   *prometheus.CounterVec
	intentsCreated prometheus.Counter
	wsWatchers     prometheus.Gauge

	updateCount  atomic.Int64
	errorCount   atomic.Int64
	intentCount  atomic.Int64
	watcherCount atomic.Int64
}

// NewMetrics creates and registers the gateway collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telegate_webhook_updates_total",
			Help: "Webhook updates by app, update type, and final dispatch state.",
		}, []string{"app", "type", "state"}),
		authRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telegate_auth_requests_total",
			Help: "Authenticate endpoint requests by result.",
		}, []string{"result"}),
		intentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telegate_intents_created_total",
			Help: "Linking intents minted.",
		}),
		wsWatchers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telegate_intent_watchers",
			Help: "Open websocket intent watches.",
		}),
	}
	reg.MustRegister(m.updates, m.authRequests, m.intentsCreated, m.wsWatchers)
	reg.MustRegister(collectors.NewGoCollector())
	return m
}

// RecordUpdate records one dispatched webhook update.
func (m *Metrics) RecordUpdate(app, updateType, state string) {
	if updateType == "" {
		updateType = "unknown"
	}
	m.updates.WithLabelValues(app, updateType, state).Inc()
	m.updateCount.Add(1)
	if state == "errored" {
		m.errorCount.Add(1)
	}
}

// RecordAuth records one authenticate request by result.
func (m *Metrics) RecordAuth(result string) {
	m.authRequests.WithLabelValues(result).Inc()
}

// RecordIntentCreated records one minted intent.
func (m *Metrics) RecordIntentCreated() {
	m.intentsCreated.Inc()
	m.intentCount.Add(1)
}

// WatcherConnected tracks an opened intent watch.
func (m *Metrics) WatcherConnected() {
	m.wsWatchers.Inc()
	m.watcherCount.Add(1)
}

// WatcherDisconnected tracks a closed intent watch.
func (m *Metrics) WatcherDisconnected() {
	m.wsWatchers.Dec()
	m.watcherCount.Add(-1)
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Updates:        m.updateCount.Load(),
		Errors:         m.errorCount.Load(),
		IntentsCreated: m.intentCount.Load(),
		Watchers:       m.watcherCount.Load(),
	}
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Updates        int64 `json:"updates"`
	Errors         int64 `json:"errors"`
	IntentsCreated int64 `json:"intents_created"`
	Watchers       int64 `json:"watchers"`
}
