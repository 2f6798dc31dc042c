// Package observability provides metrics collection for the skycast service.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkallio/skycast-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Ingest   *metrics.IngestMetrics
	Forecast *metrics.ForecastMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors. It returns an error if any collector fails to register.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}

	forecastMetrics, err := metrics.NewForecastMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create forecast metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Ingest:   ingestMetrics,
		Forecast: forecastMetrics,
	}, nil
}

// Handler returns an http.Handler exposing the registry in the Prometheus
// text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
