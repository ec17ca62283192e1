package agg

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

// ValueMetric is a single-value metric aggregation (avg, min, max, sum,
// value_count, cardinality).
type ValueMetric struct {
	base
	Field string
}

func newValueMetric(kind Kind, field string, opts []Option) *ValueMetric {
	return &ValueMetric{
		base:  newBase(kind, opts),
		Field: field,
	}
}

// NewAvg computes the average of field.
//
// Example:
//
//	aggs := agg.NewAggregations().Set("price_avg", agg.NewAvg("price"))
func NewAvg(field string, opts ...Option) *ValueMetric {
	return newValueMetric(KindAvg, field, opts)
}

// NewMin computes the minimum of field.
func NewMin(field string, opts ...Option) *ValueMetric {
	return newValueMetric(KindMin, field, opts)
}

// NewMax computes the maximum of field.
func NewMax(field string, opts ...Option) *ValueMetric {
	return newValueMetric(KindMax, field, opts)
}

// NewSum computes the sum of field.
func NewSum(field string, opts ...Option) *ValueMetric {
	return newValueMetric(KindSum, field, opts)
}

// NewValueCount counts the values of field.
func NewValueCount(field string, opts ...Option) *ValueMetric {
	return newValueMetric(KindValueCount, field, opts)
}

// NewCardinality approximates the number of distinct values of field.
func NewCardinality(field string, opts ...Option) *ValueMetric {
	return newValueMetric(KindCardinality, field, opts)
}

func (m *ValueMetric) Serialize() map[string]any {
	return m.body(fieldParams(m.Field))
}

func (m *ValueMetric) process(f fragment) (Result, error) {
	value, err := f.float64("value")
	if err != nil {
		return nil, err
	}

	return &ValueResult{
		kind:          m.kind,
		Value:         value,
		ValueAsString: f.optionalString("value_as_string"),
	}, nil
}

// ValueResult holds the outcome of a single-value metric. Value is NaN when
// the engine reported null, which it does for metrics over no documents.
type ValueResult struct {
	kind          Kind
	Value         float64
	ValueAsString string
}

func (r *ValueResult) Kind() Kind { return r.kind }
func (r *ValueResult) isResult()  {}

// StatsMetric computes stats or extended_stats over a field.
type StatsMetric struct {
	base
	Field string
}

// NewStats computes count, min, max, avg and sum of field in one pass.
func NewStats(field string, opts ...Option) *StatsMetric {
	return &StatsMetric{base: newBase(KindStats, opts), Field: field}
}

// NewExtendedStats adds sum of squares, variance and standard deviation to NewStats.
func NewExtendedStats(field string, opts ...Option) *StatsMetric {
	return &StatsMetric{base: newBase(KindExtendedStats, opts), Field: field}
}

func (m *StatsMetric) Serialize() map[string]any {
	return m.body(fieldParams(m.Field))
}

func (m *StatsMetric) process(f fragment) (Result, error) {
	stats, err := readStats(f)
	if err != nil {
		return nil, err
	}
	if m.kind == KindStats {
		return stats, nil
	}

	ext := &ExtendedStatsResult{StatsResult: *stats}
	ext.StatsResult.kind = KindExtendedStats
	if ext.SumOfSquares, err = f.float64("sum_of_squares"); err != nil {
		return nil, err
	}
	if ext.Variance, err = f.float64("variance"); err != nil {
		return nil, err
	}
	if ext.StdDeviation, err = f.float64("std_deviation"); err != nil {
		return nil, err
	}
	return ext, nil
}

func readStats(f fragment) (*StatsResult, error) {
	var (
		r   = &StatsResult{kind: KindStats}
		err error
	)
	if r.Count, err = f.int64("count"); err != nil {
		return nil, err
	}
	if r.Min, err = f.float64("min"); err != nil {
		return nil, err
	}
	if r.Max, err = f.float64("max"); err != nil {
		return nil, err
	}
	if r.Avg, err = f.float64("avg"); err != nil {
		return nil, err
	}
	if r.Sum, err = f.float64("sum"); err != nil {
		return nil, err
	}
	return r, nil
}

// StatsResult holds the outcome of a stats aggregation.
type StatsResult struct {
	kind  Kind
	Count int64
	Min   float64
	Max   float64
	Avg   float64
	Sum   float64
}

func (r *StatsResult) Kind() Kind { return r.kind }
func (r *StatsResult) isResult()  {}

// ExtendedStatsResult holds the outcome of an extended_stats aggregation.
type ExtendedStatsResult struct {
	StatsResult
	SumOfSquares float64
	Variance     float64
	StdDeviation float64
}

// PercentilesMetric computes percentiles or percentile_ranks over a field.
type PercentilesMetric struct {
	base
	Field  string
	Points []float64
}

// NewPercentiles computes the given percents of field. Without percents
// the engine defaults apply.
func NewPercentiles(field string, percents []float64, opts ...Option) *PercentilesMetric {
	return &PercentilesMetric{base: newBase(KindPercentiles, opts), Field: field, Points: percents}
}

// NewPercentileRanks computes the percentile rank of each value of field.
func NewPercentileRanks(field string, values []float64, opts ...Option) *PercentilesMetric {
	return &PercentilesMetric{base: newBase(KindPercentileRanks, opts), Field: field, Points: values}
}

func (m *PercentilesMetric) Serialize() map[string]any {
	params := fieldParams(m.Field)
	if len(m.Points) > 0 {
		key := "percents"
		if m.kind == KindPercentileRanks {
			key = "values"
		}
		params[key] = m.Points
	}
	return m.body(params)
}

func (m *PercentilesMetric) process(f fragment) (Result, error) {
	values, err := f.require("values")
	if err != nil {
		return nil, err
	}

	r := &PercentilesResult{kind: m.kind, Values: make(map[string]float64)}
	path := f.at("values")

	switch {
	case values.IsObject():
		values.ForEach(func(k, v gjson.Result) bool {
			if strings.HasSuffix(k.String(), "_as_string") {
				return true
			}
			var n float64
			if n, err = number(path+"."+k.String(), v); err != nil {
				return false
			}
			r.add(k.String(), n)
			return true
		})
	case values.IsArray():
		for i, item := range values.Array() {
			entry, ferr := newFragment(path+"["+strconv.Itoa(i)+"]", item)
			if ferr != nil {
				return nil, ferr
			}
			key, kerr := entry.require("key")
			if kerr != nil {
				return nil, kerr
			}
			n, verr := entry.float64("value")
			if verr != nil {
				return nil, verr
			}
			r.add(key.Raw, n)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidResponse, "%s: expected object or array, got %s", path, values.Type)
	}
	if err != nil {
		return nil, err
	}

	return r, nil
}

// PercentilesResult holds the outcome of a percentiles or percentile_ranks
// aggregation. Keys are the engine's own spelling ("95.0"), in response order.
type PercentilesResult struct {
	kind   Kind
	Values map[string]float64
	Keys   []string
}

func (r *PercentilesResult) add(key string, value float64) {
	if _, ok := r.Values[key]; !ok {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = value
}

func (r *PercentilesResult) Kind() Kind { return r.kind }
func (r *PercentilesResult) isResult()  {}
