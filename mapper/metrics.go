package mapper

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

// Metrics holds the instance mapper collectors. They are created unregistered;
// call Register with the registry of your choice.
type Metrics struct {
	Calls    *prometheus.CounterVec
	Keys     *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Cache    *prometheus.CounterVec
}

// NewMetrics creates the mapper collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instance_mapper_calls_total",
				Help:      "Total number of instance mapper calls",
			},
			[]string{"mapper", "status"},
		),
		Keys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instance_mapper_keys_total",
				Help:      "Total number of bucket keys passed to instance mappers",
			},
			[]string{"mapper"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "instance_mapper_duration_seconds",
				Help:      "Instance mapper call duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"mapper"},
		),
		Cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instance_cache_total",
				Help:      "Instance cache hits and misses",
			},
			[]string{"result"}, // "hit" / "miss"
		),
	}
}

// Register adds every collector to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	var err error
	for _, c := range []prometheus.Collector{m.Calls, m.Keys, m.Duration, m.Cache} {
		err = multierr.Append(err, reg.Register(c))
	}
	return err
}
