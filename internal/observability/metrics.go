package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "temp_forecast"

// Metrics holds the Prometheus gauges, counters and histograms for one forecast run.
type Metrics struct {
	RowsFetched     prometheus.Gauge
	RowsDropped     prometheus.Gauge
	FeatureDim      prometheus.Gauge
	ForecastCelsius prometheus.Gauge
	LastSuccess     prometheus.Gauge

	StageDuration *prometheus.HistogramVec // labels: stage={fetch,parse,encode,window,predict,publish}
	RunErrors     *prometheus.CounterVec   // labels: kind={network,parse,shape,model_load,unknown}

	registry *prometheus.Registry
}

// NewMetrics creates all forecast metrics on a dedicated registry, which is
// what Push sends to the Pushgateway.
func NewMetrics() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.RowsFetched,
		m.RowsDropped,
		m.FeatureDim,
		m.ForecastCelsius,
		m.LastSuccess,
		m.StageDuration,
		m.RunErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// Registry returns the registry holding every forecast metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_fetched",
			Help:      "Observation rows retained from the feed before cleaning.",
		}),
		RowsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_dropped",
			Help:      "Observation rows dropped for missing values.",
		}),
		FeatureDim: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feature_dim",
			Help:      "Number of encoded feature columns fed to the model.",
		}),
		ForecastCelsius: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "forecast_celsius",
			Help:      "Rounded next-day mean temperature forecast.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful forecast run.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
		RunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_errors_total",
			Help:      "Aborted runs by failure kind.",
		}, []string{"kind"}),
	}
}
