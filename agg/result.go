package agg

import (
	"github.com/pkg/errors"
)

// Result is the typed outcome of matching one aggregation expression
// against its response fragment. Implementations are *ValueResult,
// *StatsResult, *ExtendedStatsResult, *PercentilesResult,
// *SingleBucketResult and *BucketsResult.
type Result interface {
	Kind() Kind
	isResult()
}

// Lookup is implemented by everything carrying named sub-aggregation results:
// the top level Results, single bucket results and buckets.
type Lookup interface {
	Aggregation(name string) (Result, error)
}

// Get looks name up in l and asserts the result type.
//
// Example:
//
//	terms, err := agg.Get[*agg.BucketsResult](results, "selling_type")
//	if err != nil {
//	    return err
//	}
//	for _, bucket := range terms.Buckets {
//	    avg, _ := agg.Get[*agg.ValueResult](bucket, "price_avg")
//	    fmt.Println(bucket.Key, avg.Value)
//	}
func Get[T Result](l Lookup, name string) (T, error) {
	var zero T

	r, err := l.Aggregation(name)
	if err != nil {
		return zero, err
	}

	t, ok := r.(T)
	if !ok {
		return zero, errors.Wrapf(ErrUnexpectedResult, "%s: %s result is %T", name, r.Kind(), r)
	}
	return t, nil
}

// subResults stores named results in the order their expressions were registered.
type subResults struct {
	names   []string
	results map[string]Result
}

func (s *subResults) add(name string, r Result) {
	if s.results == nil {
		s.results = make(map[string]Result)
	}
	if _, ok := s.results[name]; !ok {
		s.names = append(s.names, name)
	}
	s.results[name] = r
}

// Aggregation returns the sub-aggregation result registered under name.
// Lookups are single level and exact.
func (s *subResults) Aggregation(name string) (Result, error) {
	r, ok := s.results[name]
	if !ok {
		return nil, errors.Wrapf(ErrAggregationNotFound, "%q", name)
	}
	return r, nil
}

// AggregationNames returns the names of the sub-aggregation results.
func (s *subResults) AggregationNames() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

func (s *subResults) each(fn func(Result)) {
	for _, name := range s.names {
		fn(s.results[name])
	}
}

// Results is the outcome of processing a response's aggregations member
// against a set of named expressions.
type Results struct {
	subResults
}
