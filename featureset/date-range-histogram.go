package featureset

import (
	"time"

	"github.com/reveald/esmap"
	"github.com/reveald/esmap/agg"
)

// DateRangeHistogramFeature is a feature that groups date values into specified ranges
type DateRangeHistogramFeature struct {
	property   string
	format     string
	ranges     []DateRange
	keyed      bool
	timezone   string
	nestedPath string
}

// DateRange defines a range between two dates. A zero From or To leaves
// that end open; FromStr and ToStr take date math such as "now-1M/M".
type DateRange struct {
	Key     string
	From    *time.Time
	To      *time.Time
	FromStr string
	ToStr   string
}

func (r DateRange) bound() agg.RangeBound {
	b := agg.RangeBound{Key: r.Key}

	if r.From != nil {
		b.From = r.From.UnixMilli()
	} else if r.FromStr != "" {
		b.From = r.FromStr
	}

	if r.To != nil {
		b.To = r.To.UnixMilli()
	} else if r.ToStr != "" {
		b.To = r.ToStr
	}

	return b
}

// DateRangeHistogramOption configures a date range histogram
type DateRangeHistogramOption func(*DateRangeHistogramFeature)

// WithRanges defines the date ranges to use for grouping
func WithRanges(ranges []DateRange) DateRangeHistogramOption {
	return func(drhf *DateRangeHistogramFeature) {
		drhf.ranges = ranges
	}
}

// WithKeyed specifies whether to generate a hash of buckets
// rather than an array
func WithKeyed(keyed bool) DateRangeHistogramOption {
	return func(drhf *DateRangeHistogramFeature) {
		drhf.keyed = keyed
	}
}

// WithTimeZone specifies the time zone to use for the buckets
func WithTimeZone(tz string) DateRangeHistogramOption {
	return func(drhf *DateRangeHistogramFeature) {
		drhf.timezone = tz
	}
}

// WithNestedField specifies that the date field is inside a nested document
func WithNestedField(path string) DateRangeHistogramOption {
	return func(drhf *DateRangeHistogramFeature) {
		drhf.nestedPath = path
	}
}

// NewDateRangeHistogramFeature creates a feature for grouping dates into
// discrete ranges
//
// Example:
//
//	recent := featureset.NewDateRangeHistogramFeature("hired_at", "yyyy-MM-dd",
//	    featureset.WithRanges([]featureset.DateRange{
//	        {Key: "older", ToStr: "now-1y/y"},
//	        {Key: "last year", FromStr: "now-1y/y"},
//	    }),
//	)
func NewDateRangeHistogramFeature(property, format string, opts ...DateRangeHistogramOption) *DateRangeHistogramFeature {
	drhf := &DateRangeHistogramFeature{
		property: property,
		format:   format,
		ranges:   []DateRange{},
	}

	for _, opt := range opts {
		opt(drhf)
	}

	return drhf
}

// Process implements the Feature interface
func (drhf *DateRangeHistogramFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	drhf.build(builder)
	return next(builder)
}

func (drhf *DateRangeHistogramFeature) build(builder *esmap.QueryBuilder) {
	bounds := make([]agg.RangeBound, 0, len(drhf.ranges))
	for _, r := range drhf.ranges {
		bounds = append(bounds, r.bound())
	}

	opts := []agg.Option{agg.WithFormat(drhf.format)}
	if drhf.keyed {
		opts = append(opts, agg.WithKeyed())
	}
	if drhf.timezone != "" {
		opts = append(opts, agg.WithParam("time_zone", drhf.timezone))
	}

	var expr agg.Expression = agg.NewDateRange(drhf.property, bounds, opts...)
	if drhf.nestedPath != "" {
		expr = agg.NewNested(drhf.nestedPath, agg.WithAggregation(drhf.property, expr))
	}

	builder.Aggregation(drhf.property, expr)
}

// Buckets returns the range buckets, looking through the nested scope if any.
func (drhf *DateRangeHistogramFeature) Buckets(result agg.Lookup) (*agg.BucketsResult, error) {
	if drhf.nestedPath == "" {
		return agg.Get[*agg.BucketsResult](result, drhf.property)
	}

	nested, err := agg.Get[*agg.SingleBucketResult](result, drhf.property)
	if err != nil {
		return nil, err
	}
	return agg.Get[*agg.BucketsResult](nested, drhf.property)
}
