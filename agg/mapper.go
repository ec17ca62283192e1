package agg

import (
	"context"
)

// InstanceMapper resolves bucket keys to application objects, e.g. rows of
// a lookup table or documents of another index.
//
// Implementations are identified by their interface value: a mapper used by
// several aggregations of one tree is called once per Process call with the
// union of their keys, which requires the dynamic type to be comparable.
// Pointers always are.
type InstanceMapper interface {
	// MapInstances returns the instance for each key it knows. Keys missing
	// from the returned map leave the bucket's Instance nil.
	MapInstances(ctx context.Context, keys []any) (map[any]any, error)
}

// MapperFunc adapts a function to an InstanceMapper.
type MapperFunc struct {
	fn func(ctx context.Context, keys []any) (map[any]any, error)
}

// NewMapperFunc wraps fn. Keep the returned pointer and pass the same value
// to every aggregation that should share one lookup.
//
// Example:
//
//	genders := agg.NewMapperFunc(func(ctx context.Context, keys []any) (map[any]any, error) {
//	    return map[any]any{"m": Male, "f": Female}, nil
//	})
func NewMapperFunc(fn func(ctx context.Context, keys []any) (map[any]any, error)) *MapperFunc {
	return &MapperFunc{fn: fn}
}

func (m *MapperFunc) MapInstances(ctx context.Context, keys []any) (map[any]any, error) {
	return m.fn(ctx, keys)
}

// MapperFromMap returns a mapper serving a fixed set of instances.
func MapperFromMap(instances map[any]any) *MapperFunc {
	return NewMapperFunc(func(_ context.Context, keys []any) (map[any]any, error) {
		out := make(map[any]any, len(keys))
		for _, key := range keys {
			if v, ok := instances[key]; ok {
				out[key] = v
			}
		}
		return out, nil
	})
}
