// Package metrics provides Prometheus collectors for the skycast service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics contains Prometheus metrics for telemetry ingestion.
type IngestMetrics struct {
	readingsTotal  *prometheus.CounterVec
	ingestDuration prometheus.Histogram
}

// NewIngestMetrics creates and registers new ingest metrics.
func NewIngestMetrics(registry *prometheus.Registry) (*IngestMetrics, error) {
	m := &IngestMetrics{
		readingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skycast_readings_total",
				Help: "Total number of ingested sensor readings",
			},
			[]string{"status"}, // status: success, validation_error, database_error
		),
		ingestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skycast_ingest_duration_seconds",
				Help:    "Time taken to persist a reading and its image",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
	}

	for _, c := range []prometheus.Collector{m.readingsTotal, m.ingestDuration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordReading increments the reading counter for the given status.
func (m *IngestMetrics) RecordReading(status string) {
	m.readingsTotal.WithLabelValues(status).Inc()
}

// RecordIngestDuration observes one ingest transaction duration in seconds.
func (m *IngestMetrics) RecordIngestDuration(seconds float64) {
	m.ingestDuration.Observe(seconds)
}
