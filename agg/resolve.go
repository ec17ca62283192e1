package agg

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
)

// Process matches the "aggregations" member of a search response against
// the registered expressions and resolves bucket instances.
//
// Instance mappers run after the whole tree has been built, each one once
// with every key it was attached to. A failing mapper leaves its buckets'
// Instance nil; the returned Results are complete and readable even when
// the error is not nil.
//
// Example:
//
//	results, err := aggs.Process(ctx, response.Aggregations)
//	if results == nil {
//	    return err
//	}
//	if err != nil {
//	    log.Warn("instance mapping failed", zap.Error(err))
//	}
func (a *Aggregations) Process(ctx context.Context, raw json.RawMessage) (*Results, error) {
	if a.Len() == 0 {
		return &Results{}, nil
	}

	root, err := parseFragment("aggregations", raw)
	if err != nil {
		return nil, err
	}

	subs, err := a.process(root)
	if err != nil {
		return nil, err
	}
	results := &Results{subResults: subs}

	r := newResolver()
	r.collectSubs(&results.subResults)
	return results, r.resolve(ctx)
}

// Process matches a single aggregation fragment against expr, resolving
// bucket instances the same way Aggregations.Process does.
func Process(ctx context.Context, expr Expression, raw json.RawMessage) (Result, error) {
	f, err := parseFragment(expr.Kind().String(), raw)
	if err != nil {
		return nil, err
	}

	result, err := expr.process(f)
	if err != nil {
		return nil, err
	}

	r := newResolver()
	r.collect(result)
	return result, r.resolve(ctx)
}

func parseFragment(path string, raw json.RawMessage) (fragment, error) {
	if len(raw) == 0 {
		return fragment{}, errors.Wrap(ErrMissingField, path)
	}
	if !gjson.ValidBytes(raw) {
		return fragment{}, errors.Wrapf(ErrInvalidResponse, "%s: malformed JSON", path)
	}
	return newFragment(path, gjson.ParseBytes(raw))
}

// resolver groups buckets by the instance mapper of the aggregation that
// produced them. It is built per Process call and never shared.
type resolver struct {
	order   []InstanceMapper
	pending map[InstanceMapper]*pendingKeys
	err     error
}

type pendingKeys struct {
	keys    []any
	seen    map[any]struct{}
	buckets []*Bucket
}

func newResolver() *resolver {
	return &resolver{
		pending: make(map[InstanceMapper]*pendingKeys),
	}
}

func (r *resolver) collect(result Result) {
	switch res := result.(type) {
	case *SingleBucketResult:
		r.collectSubs(&res.subResults)
	case *BucketsResult:
		mapper := res.mapper
		if mapper != nil && !hashable(mapper) {
			r.err = multierr.Append(r.err, errors.Wrapf(ErrUnhashableMapper, "%T", mapper))
			mapper = nil
		}
		for _, b := range res.Buckets {
			if mapper != nil {
				r.add(mapper, b)
			}
			r.collectSubs(&b.subResults)
		}
	}
}

func (r *resolver) collectSubs(s *subResults) {
	s.each(r.collect)
}

func (r *resolver) add(m InstanceMapper, b *Bucket) {
	p, ok := r.pending[m]
	if !ok {
		p = &pendingKeys{seen: make(map[any]struct{})}
		r.pending[m] = p
		r.order = append(r.order, m)
	}

	p.buckets = append(p.buckets, b)
	if !hashable(b.Key) {
		return
	}
	if _, ok := p.seen[b.Key]; !ok {
		p.seen[b.Key] = struct{}{}
		p.keys = append(p.keys, b.Key)
	}
}

// resolve calls every collected mapper once, in the order they were first
// seen, and back-fills the instances of its buckets.
func (r *resolver) resolve(ctx context.Context) error {
	err := r.err
	for _, m := range r.order {
		p := r.pending[m]

		instances, merr := m.MapInstances(ctx, p.keys)
		if merr != nil {
			err = multierr.Append(err, errors.Wrapf(merr, "instance mapper %T", m))
			continue
		}

		for _, b := range p.buckets {
			if hashable(b.Key) {
				b.Instance = instances[b.Key]
			}
		}
	}
	return err
}

func hashable(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).Comparable()
}
