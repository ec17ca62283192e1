package mapper

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/reveald/esmap/agg"
)

// Instrumented wraps an instance mapper with metrics and logging.
type Instrumented struct {
	inner   agg.InstanceMapper
	name    string
	logger  *zap.Logger
	metrics *Metrics
}

// NewInstrumented wraps inner. name labels its metrics and log lines.
//
// Example:
//
//	metrics := mapper.NewMetrics("esmap")
//	genders := mapper.NewInstrumented(agg.MapperFromMap(names), "genders",
//	    mapper.WithMetrics(metrics),
//	    mapper.WithLogger(logger),
//	)
func NewInstrumented(inner agg.InstanceMapper, name string, opts ...Option) *Instrumented {
	o := buildOptions(opts)
	return &Instrumented{
		inner:   inner,
		name:    name,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// MapInstances delegates to the inner mapper, recording the call.
func (m *Instrumented) MapInstances(ctx context.Context, keys []any) (map[any]any, error) {
	start := time.Now()

	instances, err := m.inner.MapInstances(ctx, keys)

	duration := time.Since(start)
	m.observe(len(keys), duration, err)

	if err != nil {
		m.logger.Error("Instance mapping failed",
			zap.String("mapper", m.name),
			zap.Int("keys", len(keys)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, errors.Wrapf(err, "mapper %s", m.name)
	}

	m.logger.Debug("Instance mapping completed",
		zap.String("mapper", m.name),
		zap.Int("keys", len(keys)),
		zap.Int("instances", len(instances)),
		zap.Duration("duration", duration),
	)

	return instances, nil
}

func (m *Instrumented) observe(keys int, duration time.Duration, err error) {
	if m.metrics == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.metrics.Calls.WithLabelValues(m.name, status).Inc()
	m.metrics.Keys.WithLabelValues(m.name).Add(float64(keys))
	m.metrics.Duration.WithLabelValues(m.name).Observe(duration.Seconds())
}
