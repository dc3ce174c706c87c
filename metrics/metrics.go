// Package metrics exposes the pipeline's operational counters over
// Prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MalformedTrades = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_malformed_trades_total",
		Help: "Trades dropped because they failed validation.",
	})

	SourceReconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_source_reconnects_total",
		Help: "Trade source reconnect attempts.",
	})

	StoreWritesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_store_writes_dropped_total",
		Help: "Store writes dropped after backlog overflow.",
	})

	SubscriberDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_subscriber_drops_total",
		Help: "Broadcast messages dropped per subscriber due to a full buffer.",
	}, []string{"subscriber_id"})

	SignalsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_signals_emitted_total",
		Help: "Signals emitted by type.",
	}, []string{"type"})
)

// NewRegistry builds a fresh Prometheus registry holding this package's
// counters, kept distinct from the default global registry. The counters
// themselves are package-level, so every registry it returns exposes the
// same values.
func NewRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(MalformedTrades, SourceReconnects, StoreWritesDropped, SubscriberDrops, SignalsEmitted)
	return r
}
