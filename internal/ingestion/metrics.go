package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the candle writer.
type Metrics struct {
	// Ticks processed
	TicksTotal *prometheus.CounterVec

	// Parse errors
	ParseErrors prometheus.Counter

	// Snapshot publication
	PublishErrors prometheus.Counter

	// Bus resubscriptions
	BusReconnects prometheus.Counter

	// Checkpoint performance
	CheckpointDuration prometheus.Histogram
	CandlesPersisted   prometheus.Counter

	// Restore
	CandlesRestored prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TicksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_total",
				Help:      "Total number of ticks processed, labeled by status (success/error)",
			},
			[]string{"status"},
		),

		ParseErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "parse_errors_total",
				Help:      "Total number of tick parse errors",
			},
		),

		PublishErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_errors_total",
				Help:      "Total number of snapshot publish errors",
			},
		),

		BusReconnects: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_reconnects_total",
				Help:      "Total number of bus resubscriptions",
			},
		),

		CheckpointDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "checkpoint_duration_seconds",
				Help:      "Duration of checkpoint cycles in seconds",
				Buckets:   prometheus.DefBuckets, // 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10
			},
		),

		CandlesPersisted: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candles_persisted_total",
				Help:      "Total number of candles handed to the persistence engine",
			},
		),

		CandlesRestored: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candles_restored_total",
				Help:      "Total number of candles loaded back at startup",
			},
		),
	}
}

// RecordTickSuccess increments the success counter.
func (m *Metrics) RecordTickSuccess() {
	m.TicksTotal.WithLabelValues("success").Inc()
}

// RecordTickError increments the error counter.
func (m *Metrics) RecordTickError() {
	m.TicksTotal.WithLabelValues("error").Inc()
}

// RecordParseError increments the parse error counter.
func (m *Metrics) RecordParseError() {
	m.ParseErrors.Inc()
}

// RecordPublishError increments the publish error counter.
func (m *Metrics) RecordPublishError() {
	m.PublishErrors.Inc()
}

// RecordBusReconnect increments the resubscription counter.
func (m *Metrics) RecordBusReconnect() {
	m.BusReconnects.Inc()
}

// ObserveCheckpointDuration records one checkpoint cycle duration.
func (m *Metrics) ObserveCheckpointDuration(seconds float64) {
	m.CheckpointDuration.Observe(seconds)
}

// RecordCandlesPersisted adds to the persisted candle counter.
func (m *Metrics) RecordCandlesPersisted(count int) {
	m.CandlesPersisted.Add(float64(count))
}

// RecordCandlesRestored adds to the restored candle counter.
func (m *Metrics) RecordCandlesRestored(count int) {
	m.CandlesRestored.Add(float64(count))
}
