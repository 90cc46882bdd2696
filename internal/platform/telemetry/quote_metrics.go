package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "quotekeeper"

// QuoteMetrics exposes store and sync activity to Prometheus.
// It implements ports.SyncRecorder.
type QuoteMetrics struct {
	syncCycles      *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	syncLastSuccess prometheus.Gauge
	storeQuotes     prometheus.Gauge
	storeChanges    *prometheus.CounterVec
	remoteCircuit   *prometheus.GaugeVec
}

// NewQuoteMetrics creates the collectors and registers them with reg.
func NewQuoteMetrics(reg prometheus.Registerer) (*QuoteMetrics, error) {
	m := &QuoteMetrics{
		syncCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Sync cycles by outcome.",
		}, []string{"outcome"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of sync cycles, including failed ones.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		syncLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful sync cycle.",
		}),
		storeQuotes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "quotes",
			Help:      "Number of quotes currently held by the store.",
		}),
		storeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "changes_total",
			Help:      "Committed store changes by reason.",
		}, []string{"reason"}),
		remoteCircuit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "remote",
			Name:      "circuit_state",
			Help:      "Remote circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"downstream"}),
	}

	for _, c := range []prometheus.Collector{
		m.syncCycles, m.syncDuration, m.syncLastSuccess, m.storeQuotes, m.storeChanges, m.remoteCircuit,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordSyncCycle implements ports.SyncRecorder.
func (m *QuoteMetrics) RecordSyncCycle(_ context.Context, outcome string, duration time.Duration) {
	m.syncCycles.WithLabelValues(outcome).Inc()
	m.syncDuration.Observe(duration.Seconds())

	if outcome != "failed" {
		m.syncLastSuccess.SetToCurrentTime()
	}
}

// ObserveStoreChange records a committed change and the resulting size.
func (m *QuoteMetrics) ObserveStoreChange(reason string, size int) {
	m.storeChanges.WithLabelValues(reason).Inc()
	m.storeQuotes.Set(float64(size))
}

// ObserveCircuitState records the breaker position for a downstream.
func (m *QuoteMetrics) ObserveCircuitState(downstream string, state int) {
	m.remoteCircuit.WithLabelValues(downstream).Set(float64(state))
}
