// Package mapper provides reusable instance mappers: decorators that add
// metrics and caching to any agg.InstanceMapper, and a mapper that resolves
// bucket keys to documents stored in Elasticsearch.
package mapper

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultNamespace = "esmap:"
)

type options struct {
	logger    *zap.Logger
	metrics   *Metrics
	ttl       time.Duration
	namespace string
}

// Option configures a mapper.
type Option func(*options)

// WithLogger sets the logger. Mappers log nothing by default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records mapper metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithTTL sets how long a cached instance is kept. Zero keeps entries
// until they are evicted.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.ttl = ttl
	}
}

// WithNamespace prefixes every cache key, so several mappers can share one cache.
func WithNamespace(namespace string) Option {
	return func(o *options) {
		o.namespace = namespace
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:    zap.NewNop(),
		ttl:       defaultTTL,
		namespace: defaultNamespace,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
