package esmap

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// SearchMetrics are the Prometheus metrics recorded by ElasticBackend.
// They are not registered anywhere until Register is called.
type SearchMetrics struct {
	Requests      *prometheus.CounterVec
	Duration      prometheus.Histogram
	MappingErrors prometheus.Counter
}

// NewSearchMetrics creates search metrics under namespace.
func NewSearchMetrics(namespace string) *SearchMetrics {
	return &SearchMetrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_requests_total",
				Help:      "Total number of search requests",
			},
			[]string{"status"}, // "ok" / "error"
		),
		Duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_request_duration_seconds",
				Help:      "Search request duration in seconds, including aggregation processing",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		MappingErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instance_mapping_errors_total",
				Help:      "Total number of searches whose instance mapping failed",
			},
		),
	}
}

// Register registers every collector with reg.
func (m *SearchMetrics) Register(reg prometheus.Registerer) error {
	var err error
	for _, c := range []prometheus.Collector{m.Requests, m.Duration, m.MappingErrors} {
		err = multierr.Append(err, reg.Register(c))
	}
	return err
}
