// Package metrics exposes the tracer's Prometheus instrumentation.
//
// All recording methods are nil-safe so callers can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xpcspy"

// Metrics holds the collectors updated by the event processor.
type Metrics struct {
	notifications *prometheus.CounterVec // by kind
	diagnostics   *prometheus.CounterVec // by kind
	records       *prometheus.CounterVec // by outcome: emitted, filtered
	sentinels     *prometheus.CounterVec // by sentinel body

	pendingTimestamps prometheus.Gauge
	pendingRecords    prometheus.Gauge

	decodeDuration *prometheus.HistogramVec // by tag
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications received from the agent, by kind",
		}, []string{"kind"}),

		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Non-fatal ingestion problems, by kind",
		}, []string{"kind"}),

		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Correlated records flushed from the buffer, by outcome",
		}, []string{"outcome"}),

		sentinels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentinel_records_total",
			Help:      "Records completed with a synthetic body, by body",
		}, []string{"sentinel"}),

		pendingTimestamps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "pending_timestamps",
			Help:      "Timestamps currently held in the correlation buffer",
		}),

		pendingRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "pending_records",
			Help:      "Records currently held in the correlation buffer",
		}),

		decodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decoder",
			Name:      "duration_seconds",
			Help:      "Tagged payload decoding duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"tag"}),
	}

	for _, c := range []prometheus.Collector{
		m.notifications,
		m.diagnostics,
		m.records,
		m.sentinels,
		m.pendingTimestamps,
		m.pendingRecords,
		m.decodeDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Notification counts one received notification.
func (m *Metrics) Notification(kind string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind).Inc()
}

// Diagnostic counts one non-fatal problem.
func (m *Metrics) Diagnostic(kind string) {
	if m == nil {
		return
	}
	m.diagnostics.WithLabelValues(kind).Inc()
}

// RecordEmitted counts one record handed to the outputs.
func (m *Metrics) RecordEmitted() {
	if m == nil {
		return
	}
	m.records.WithLabelValues("emitted").Inc()
}

// RecordFiltered counts one record dropped by the symbol filter.
func (m *Metrics) RecordFiltered() {
	if m == nil {
		return
	}
	m.records.WithLabelValues("filtered").Inc()
}

// Sentinel counts n records completed with the given synthetic body.
func (m *Metrics) Sentinel(sentinel string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sentinels.WithLabelValues(sentinel).Add(float64(n))
}

// SetPending updates the buffer occupancy gauges.
func (m *Metrics) SetPending(timestamps, records int) {
	if m == nil {
		return
	}
	m.pendingTimestamps.Set(float64(timestamps))
	m.pendingRecords.Set(float64(records))
}

// ObserveDecode records how long decoding a tagged payload took.
func (m *Metrics) ObserveDecode(tag string, d time.Duration) {
	if m == nil {
		return
	}
	m.decodeDuration.WithLabelValues(tag).Observe(d.Seconds())
}
