package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ForecastMetrics contains Prometheus metrics for the forecast pipeline.
type ForecastMetrics struct {
	runsTotal          *prometheus.CounterVec
	inferenceDuration  prometheus.Histogram
	imageFetchDuration prometheus.Histogram
	predictedValue     prometheus.Gauge
}

// NewForecastMetrics creates and registers new forecast metrics.
func NewForecastMetrics(registry *prometheus.Registry) (*ForecastMetrics, error) {
	m := &ForecastMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skycast_forecast_runs_total",
				Help: "Total number of forecast engine runs",
			},
			// outcome: success, duplicate, skipped, missing_input, fetch_error,
			// inference_error, database_error
			[]string{"outcome"},
		),
		inferenceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skycast_inference_duration_seconds",
				Help:    "Time taken by one model inference call",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		imageFetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skycast_image_fetch_duration_seconds",
				Help:    "Time taken to fetch a sky image from the blob store",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		predictedValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "skycast_predicted_irradiance",
				Help: "Most recent inverse-scaled irradiance prediction",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.runsTotal, m.inferenceDuration, m.imageFetchDuration, m.predictedValue,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordRun increments the run counter for the given outcome.
func (m *ForecastMetrics) RecordRun(outcome string) {
	m.runsTotal.WithLabelValues(outcome).Inc()
}

// RecordInferenceDuration observes one inference duration in seconds.
func (m *ForecastMetrics) RecordInferenceDuration(seconds float64) {
	m.inferenceDuration.Observe(seconds)
}

// RecordImageFetchDuration observes one image fetch duration in seconds.
func (m *ForecastMetrics) RecordImageFetchDuration(seconds float64) {
	m.imageFetchDuration.Observe(seconds)
}

// UpdatePredictedValue sets the latest prediction gauge.
func (m *ForecastMetrics) UpdatePredictedValue(value float64) {
	m.predictedValue.Set(value)
}
