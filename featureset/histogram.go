package featureset

import (
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/reveald/esmap"
	"github.com/reveald/esmap/agg"
)

// HistogramFeature buckets a numeric property into fixed intervals and
// filters the search on the range given by the "<property>.min" and
// "<property>.max" parameters.
type HistogramFeature struct {
	property    string
	neg         bool
	interval    float64
	minDocCount int64
}

type HistogramOption func(*HistogramFeature)

func WithNegativeValuesAllowed() HistogramOption {
	return func(hf *HistogramFeature) {
		hf.neg = true
	}
}

func WithInterval(interval float64) HistogramOption {
	return func(hf *HistogramFeature) {
		hf.interval = interval
	}
}

func WithMinimumDocumentCount(minDocCount int64) HistogramOption {
	return func(hf *HistogramFeature) {
		hf.minDocCount = minDocCount
	}
}

func NewHistogramFeature(property string, opts ...HistogramOption) *HistogramFeature {
	hf := &HistogramFeature{
		property:    property,
		neg:         false,
		interval:    100,
		minDocCount: 0,
	}

	for _, opt := range opts {
		opt(hf)
	}

	return hf
}

func (hf *HistogramFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	hf.build(builder)

	r, err := next(builder)
	if r == nil {
		return nil, err
	}

	hf.handle(r)
	return r, err
}

func (hf *HistogramFeature) build(builder *esmap.QueryBuilder) {
	builder.Aggregation(hf.property,
		agg.NewHistogram(hf.property, hf.interval,
			agg.WithMinDocCount(hf.minDocCount)))

	min, wmin := floatParam(builder, hf.property+".min")
	max, wmax := floatParam(builder, hf.property+".max")
	if !wmin && !wmax {
		return
	}

	q := &types.NumberRangeQuery{}
	if wmax && (max >= 0 || hf.neg) {
		lte := types.Float64(max)
		q.Lte = &lte
	}

	if wmin && (!wmax || min <= max) && (min >= 0 || hf.neg) {
		gte := types.Float64(min)
		q.Gte = &gte
	}

	if q.Lte == nil && q.Gte == nil {
		return
	}

	builder.With(types.Query{
		Range: map[string]types.RangeQuery{hf.property: q},
	})
}

// handle prepends an empty zero bucket when every bucket lies above zero,
// so the histogram always starts at the origin.
func (hf *HistogramFeature) handle(result *esmap.Result) {
	histogram, err := agg.Get[*agg.BucketsResult](result, hf.property)
	if err != nil || len(histogram.Buckets) == 0 {
		return
	}

	for _, bucket := range histogram.Buckets {
		if key, ok := numericKey(bucket.Key); !ok || key <= 0 {
			return
		}
	}

	histogram.Buckets = append([]*agg.Bucket{{Key: 0.0, KeyAsString: "0"}}, histogram.Buckets...)
}

func floatParam(builder *esmap.QueryBuilder, name string) (float64, bool) {
	v, ok := builder.Param(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func numericKey(key any) (float64, bool) {
	switch k := key.(type) {
	case int64:
		return float64(k), true
	case float64:
		return k, true
	case string:
		f, err := strconv.ParseFloat(k, 64)
		return f, err == nil
	default:
		f, err := strconv.ParseFloat(fmt.Sprint(k), 64)
		return f, err == nil
	}
}
