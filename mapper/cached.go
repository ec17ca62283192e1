package mapper

import (
	"context"
	"fmt"

	"github.com/coocood/freecache"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/reveald/esmap/agg"
)

// Cached keeps the instances resolved by an inner mapper in a freecache.
// Instances are stored msgpack encoded, so T must round-trip through msgpack;
// instances of any other type are passed through uncached.
//
// Keys missing from the cache are resolved with a single call to the inner
// mapper.
type Cached[T any] struct {
	inner     agg.InstanceMapper
	cache     *freecache.Cache
	namespace string
	ttl       int
	logger    *zap.Logger
	metrics   *Metrics
}

// NewCached wraps inner with cache.
//
// Example:
//
//	companies := mapper.NewCached[map[string]any](
//	    mapper.NewDocuments(client, "companies"),
//	    freecache.NewCache(cfg.Mapper.CacheSizeBytes),
//	    mapper.WithTTL(cfg.Mapper.CacheTTL),
//	    mapper.WithNamespace("companies:"),
//	)
func NewCached[T any](inner agg.InstanceMapper, cache *freecache.Cache, opts ...Option) *Cached[T] {
	o := buildOptions(opts)
	return &Cached[T]{
		inner:     inner,
		cache:     cache,
		namespace: o.namespace,
		ttl:       int(o.ttl.Seconds()),
		logger:    o.logger,
		metrics:   o.metrics,
	}
}

func (c *Cached[T]) MapInstances(ctx context.Context, keys []any) (map[any]any, error) {
	instances := make(map[any]any, len(keys))
	cacheKeys := make(map[any][]byte, len(keys))
	var misses []any

	for _, key := range keys {
		ck, err := c.cacheKey(key)
		if err != nil {
			c.logger.Warn("Failed to encode cache key", zap.Any("key", key), zap.Error(err))
			misses = append(misses, key)
			continue
		}
		cacheKeys[key] = ck

		instance, ok := c.lookup(ck)
		if !ok {
			misses = append(misses, key)
			continue
		}
		instances[key] = instance
	}

	c.incCache("hit", len(keys)-len(misses))
	c.incCache("miss", len(misses))

	if len(misses) == 0 {
		return instances, nil
	}

	resolved, err := c.inner.MapInstances(ctx, misses)
	if err != nil {
		return nil, err
	}

	for key, instance := range resolved {
		instances[key] = instance
		if ck, ok := cacheKeys[key]; ok {
			c.store(ck, instance)
		}
	}

	return instances, nil
}

func (c *Cached[T]) cacheKey(key any) ([]byte, error) {
	b, err := msgpack.Marshal(key)
	if err != nil {
		return nil, errors.Wrap(err, "encode key")
	}
	return append([]byte(c.namespace), b...), nil
}

func (c *Cached[T]) lookup(ck []byte) (T, bool) {
	var instance T

	data, err := c.cache.Get(ck)
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			c.logger.Warn("Instance cache lookup failed", zap.Error(err))
		}
		return instance, false
	}

	if err := msgpack.Unmarshal(data, &instance); err != nil {
		c.logger.Warn("Failed to decode cached instance", zap.Error(err))
		return instance, false
	}

	return instance, true
}

func (c *Cached[T]) store(ck []byte, instance any) {
	typed, ok := instance.(T)
	if !ok {
		c.logger.Warn("Instance not cached, unexpected type",
			zap.String("type", fmt.Sprintf("%T", instance)),
		)
		return
	}

	data, err := msgpack.Marshal(typed)
	if err != nil {
		c.logger.Warn("Failed to encode instance", zap.Error(err))
		return
	}

	if err := c.cache.Set(ck, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache instance", zap.Error(err))
	}
}

func (c *Cached[T]) incCache(result string, n int) {
	if c.metrics == nil || n == 0 {
		return
	}
	c.metrics.Cache.WithLabelValues(result).Add(float64(n))
}
