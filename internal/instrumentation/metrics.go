package instrumentation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for the ingestion service.
// All vectors are labeled by venue so one process can host many engines.
type Metrics struct {
	TradesProcessed  *prometheus.CounterVec
	TradesDuplicate  *prometheus.CounterVec
	WhaleAlerts      *prometheus.CounterVec
	CandleFlushes    *prometheus.CounterVec
	SnapshotsWritten *prometheus.CounterVec
	Reconnects       *prometheus.CounterVec
	MalformedFrames  *prometheus.CounterVec
	ErrorsTotal      *prometheus.CounterVec
	ProcessLatency   prometheus.Histogram
}

// NewMetrics creates and registers all ingestion metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		TradesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_trades_processed_total",
			Help: "Trades accepted and persisted per venue",
		}, []string{"venue"}),

		TradesDuplicate: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_trades_duplicate_total",
			Help: "Redelivered trades ignored by idempotent persistence",
		}, []string{"venue"}),

		WhaleAlerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_whale_alerts_total",
			Help: "Whale alerts published per venue",
		}, []string{"venue"}),

		CandleFlushes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_candle_flushes_total",
			Help: "Completed candle buckets flushed to storage",
		}, []string{"venue"}),

		SnapshotsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_orderbook_snapshots_total",
			Help: "Order book snapshots persisted per venue",
		}, []string{"venue"}),

		Reconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_reconnect_attempts_total",
			Help: "Streaming reconnect attempts per venue",
		}, []string{"venue"}),

		MalformedFrames: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_malformed_frames_total",
			Help: "Inbound frames dropped as malformed",
		}, []string{"venue"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Errors by venue and component",
		}, []string{"venue", "component"}),

		ProcessLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_process_latency_ms",
			Help:    "Time to persist and publish one trade in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

// RecordError increments the error counter for a venue component.
func (m *Metrics) RecordError(venue, component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(venue, component).Inc()
}
