package connstats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Exporter exposes Manager counters as Prometheus metrics at scrape time.
type Exporter struct {
	manager *Manager

	records   *prometheus.Desc
	sentinels *prometheus.Desc
	lastSeen  *prometheus.Desc
}

// NewExporter creates a collector reading from manager.
func NewExporter(manager *Manager) *Exporter {
	return &Exporter{
		manager: manager,
		records: prometheus.NewDesc(
			"xpcspy_service_records",
			"Records emitted per XPC service.",
			[]string{"service"}, nil,
		),
		sentinels: prometheus.NewDesc(
			"xpcspy_service_sentinel_records",
			"Records emitted with a synthetic body per XPC service.",
			[]string{"service"}, nil,
		),
		lastSeen: prometheus.NewDesc(
			"xpcspy_service_last_seen_timestamp_seconds",
			"Wall-clock time of the last record per XPC service.",
			[]string{"service"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.records
	ch <- e.sentinels
	ch <- e.lastSeen
}

// Collect implements prometheus.Collector.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	for _, stats := range e.manager.Services() {
		ch <- prometheus.MustNewConstMetric(e.records, prometheus.CounterValue, float64(stats.Records), stats.Service)
		ch <- prometheus.MustNewConstMetric(e.sentinels, prometheus.CounterValue, float64(stats.Sentinels), stats.Service)
		ch <- prometheus.MustNewConstMetric(e.lastSeen, prometheus.GaugeValue, float64(stats.LastSeen.UnixNano())/1e9, stats.Service)
	}
}
