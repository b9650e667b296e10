// Package observability holds the Prometheus metrics for the report pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stratuxmap"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// report pipeline and API.
type Metrics struct {
	EnvelopesReceived prometheus.Counter
	ReportsParsed     *prometheus.CounterVec   // labels: type
	ReportsDropped    *prometheus.CounterVec   // labels: reason={empty,unknown_type,encode_error}
	SinkWrites        *prometheus.CounterVec   // labels: sink, outcome={success,error}
	ParseDuration     *prometheus.HistogramVec // labels: type
	PipelineRunning   prometheus.Gauge

	// Airport lookup metrics.
	AirportLookups *prometheus.CounterVec // labels: outcome={hit,miss,error}

	// HTTP API metrics.
	HTTPRequests *prometheus.CounterVec // labels: route, status
}

func newMetrics() *Metrics {
	return &Metrics{
		EnvelopesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_received_total",
			Help:      "Total report envelopes read from all sources.",
		}),
		ReportsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_parsed_total",
			Help:      "Reports successfully parsed, by report type.",
		}, []string{"type"}),
		ReportsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_dropped_total",
			Help:      "Envelopes that produced no report, by reason.",
		}, []string{"reason"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Parsed report writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
		ParseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Time to dispatch and parse one report, including airport lookup.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"type"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		AirportLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "airport_lookups_total",
			Help:      "Airport metadata lookups by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route pattern and status code.",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EnvelopesReceived,
		m.ReportsParsed,
		m.ReportsDropped,
		m.SinkWrites,
		m.ParseDuration,
		m.PipelineRunning,
		m.AirportLookups,
		m.HTTPRequests,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() (*Metrics, *prometheus.Registry) {
	m := newMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.collectors()...)
	return m, reg
}
