package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the risk engine.
type Metrics struct {
	TicksTotal      prometheus.Counter
	RecomputesTotal prometheus.Counter
	UpdatesEmitted  prometheus.Counter
	SkippedSymbols  prometheus.Counter
	FeedReconnects  prometheus.Counter
	CacheEntries    prometheus.Gauge
	Subscriptions   prometheus.Gauge
	WSClients       prometheus.Gauge

	VaRComputeDur     prometheus.Histogram
	SnapshotDur       prometheus.Histogram
	ViolationsTotal   *prometheus.CounterVec // labels: type, severity
	AutoReductions    prometheus.Counter
	FanoutDropsTotal  *prometheus.CounterVec // labels: subscriber
	RedisBreakerState prometheus.Gauge       // 0=closed, 1=open, 2=half-open
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_ticks_total",
			Help: "Total market-data ticks received",
		}),
		RecomputesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_greeks_recomputes_total",
			Help: "Total per-symbol Greeks recomputations",
		}),
		UpdatesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_greeks_updates_emitted_total",
			Help: "Greeks updates that passed the significance test",
		}),
		SkippedSymbols: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_symbols_skipped_total",
			Help: "Symbols skipped in a cycle (parse failure or missing data)",
		}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_feed_reconnects_total",
			Help: "Market-data feed reconnection attempts",
		}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskengine_cache_entries",
			Help: "Tracked symbols in the Greeks cache",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskengine_subscriptions",
			Help: "Active Greeks subscriptions",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskengine_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		VaRComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskengine_var_compute_duration_seconds",
			Help:    "Value-at-Risk computation latency",
			Buckets: prometheus.DefBuckets,
		}),
		SnapshotDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskengine_snapshot_duration_seconds",
			Help:    "Full portfolio risk snapshot latency",
			Buckets: prometheus.DefBuckets,
		}),
		ViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskengine_violations_total",
			Help: "Risk limit violations detected (by type and severity)",
		}, []string{"type", "severity"}),
		AutoReductions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "riskengine_auto_reductions_total",
			Help: "Automatic risk reduction runs triggered",
		}),
		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "riskengine_fanout_drops_total",
			Help: "Update batches dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "riskengine_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.RecomputesTotal,
		m.UpdatesEmitted,
		m.SkippedSymbols,
		m.FeedReconnects,
		m.CacheEntries,
		m.Subscriptions,
		m.WSClients,
		m.VaRComputeDur,
		m.SnapshotDur,
		m.ViolationsTotal,
		m.AutoReductions,
		m.FanoutDropsTotal,
		m.RedisBreakerState,
	)

	return m
}
