package featureset

import (
	"time"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/reveald/esmap"
	"github.com/reveald/esmap/agg"
)

// DateHistogramInterval specifies the date interval size
type DateHistogramInterval string

// Common intervals
const (
	Second     DateHistogramInterval = "second"
	Minute     DateHistogramInterval = "minute"
	Hour       DateHistogramInterval = "hour"
	Day        DateHistogramInterval = "day"
	Week       DateHistogramInterval = "week"
	Month      DateHistogramInterval = "month"
	Quarter    DateHistogramInterval = "quarter"
	Year       DateHistogramInterval = "year"
	Minute5    DateHistogramInterval = "5m"
	Minute10   DateHistogramInterval = "10m"
	Minute30   DateHistogramInterval = "30m"
	MinuteHalf DateHistogramInterval = "30m"
	Hour12     DateHistogramInterval = "12h"
)

type intervalKind int

const (
	autoInterval intervalKind = iota
	calendarInterval
	fixedInterval
)

// DateHistogramFeature creates a date histogram aggregation for date fields.
//
// It groups documents based on date field values into buckets and
// applies a date range filter from the "<property>.from" and
// "<property>.to" parameters.
//
// Example:
//
//	hired := featureset.NewDateHistogramFeature("hired_at", featureset.Month,
//	    featureset.WithDateFormat("yyyy-MM"),
//	)
type DateHistogramFeature struct {
	property              string
	interval              DateHistogramInterval
	intervalKind          intervalKind
	format                string
	minDocCount           int64
	extendedBounds        bool
	keepDescendingOrder   bool
	defaultUpperThreshold *time.Time
	defaultLowerThreshold *time.Time
	timezone              string
	zerobucket            bool
}

// DateHistogramOption is a functional option for configuring a DateHistogramFeature.
type DateHistogramOption func(*DateHistogramFeature)

// WithDateFormat defines the date format used when returning
// the date buckets in an aggregation
func WithDateFormat(format string) DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.format = format
	}
}

// WithDateTimeZone sets a time zone for the date histogram.
func WithDateTimeZone(timezone string) DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.timezone = timezone
	}
}

// WithMinDateDocumentCount specifies how many documents must match
// a date range for it to be included in the search result.
func WithMinDateDocumentCount(minDocCount int64) DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.minDocCount = minDocCount
	}
}

// WithMinimumDate specifies a minimum date threshold for
// a property to use in a search
func WithMinimumDate(t time.Time) DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.defaultLowerThreshold = &t
	}
}

// WithMaximumDate specifies a maximum date threshold for
// a property to use in a search
func WithMaximumDate(t time.Time) DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.defaultUpperThreshold = &t
	}
}

// WithExtendedBounds generates empty buckets between the minimum and
// maximum dates even if no value exists in the range.
//
// Example:
//
//	dateHistogram := featureset.NewDateHistogramFeature("created_at", featureset.Month,
//	    featureset.WithExtendedBounds(),
//	    featureset.WithDefaultBounds("2020-01-01T00:00:00Z", "2020-12-31T00:00:00Z"),
//	    featureset.WithEmptyBuckets(),
//	)
func WithExtendedBounds() DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.extendedBounds = true
	}
}

// WithEmptyBuckets keeps buckets without documents in the result.
func WithEmptyBuckets() DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.zerobucket = true
	}
}

// WithDescendingOrder specifies that the bucket order starts with
// the newest date, rather than the oldest
func WithDescendingOrder() DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.keepDescendingOrder = true
	}
}

// WithCalendarIntervalInstead sends the interval as "calendar_interval"
// regardless of its value.
func WithCalendarIntervalInstead() DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.intervalKind = calendarInterval
	}
}

// WithCalendarInterval sets the calendar interval for the date histogram.
//
// Calendar intervals are specified as 'year', 'quarter', 'month', 'week', 'day', 'hour', 'minute', or 'second'.
func WithCalendarInterval(interval string) DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.interval = DateHistogramInterval(interval)
		dhf.intervalKind = calendarInterval
	}
}

// WithFixedInterval sets the fixed interval for the date histogram.
//
// Fixed intervals are specified as a number followed by a time unit, e.g., '1h', '1d', '7d'.
func WithFixedInterval(interval string) DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		dhf.interval = DateHistogramInterval(interval)
		dhf.intervalKind = fixedInterval
	}
}

// WithDefaultBounds sets the default lower and upper bounds, as RFC 3339
// timestamps, used when no range parameters are provided. Bounds that do
// not parse are ignored.
func WithDefaultBounds(lower, upper string) DateHistogramOption {
	return func(dhf *DateHistogramFeature) {
		if t, err := time.Parse(time.RFC3339, lower); err == nil {
			dhf.defaultLowerThreshold = &t
		}
		if t, err := time.Parse(time.RFC3339, upper); err == nil {
			dhf.defaultUpperThreshold = &t
		}
	}
}

// NewDateHistogramFeature creates a new date histogram feature for the specified property and interval.
//
// Example:
//
//	dateHistogram := featureset.NewDateHistogramFeature("created_at", featureset.Day,
//	    featureset.WithDateTimeZone("UTC"),
//	    featureset.WithMinDateDocumentCount(5),
//	)
func NewDateHistogramFeature(property string, interval DateHistogramInterval, opts ...DateHistogramOption) *DateHistogramFeature {
	dhf := &DateHistogramFeature{
		property: property,
		interval: interval,
		format:   "yyyy-MM-dd HH:mm:ss",
	}

	for _, opt := range opts {
		opt(dhf)
	}

	return dhf
}

// Process adds the date histogram aggregation and the date range filter,
// then drops empty buckets from the result unless they were asked for.
func (dhf *DateHistogramFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	dhf.build(builder)

	r, err := next(builder)
	if r == nil {
		return nil, err
	}

	dhf.handle(r)
	return r, err
}

func (dhf *DateHistogramFeature) build(builder *esmap.QueryBuilder) {
	from, hasFrom := builder.Param(dhf.property + ".from")
	to, hasTo := builder.Param(dhf.property + ".to")

	if hasFrom || hasTo {
		dateRangeQuery := &types.DateRangeQuery{}
		if hasFrom {
			dateRangeQuery.Gte = &from
		}
		if hasTo {
			dateRangeQuery.Lte = &to
		}

		builder.With(types.Query{
			Range: map[string]types.RangeQuery{
				dhf.property: dateRangeQuery,
			},
		})
	}

	opts := []agg.Option{agg.WithFormat(dhf.format)}

	switch dhf.intervalKind {
	case calendarInterval:
		opts = append(opts, agg.WithCalendarInterval())
	case fixedInterval:
		opts = append(opts, agg.WithFixedInterval())
	}

	if dhf.minDocCount > 0 {
		opts = append(opts, agg.WithMinDocCount(dhf.minDocCount))
	}

	if dhf.timezone != "" {
		opts = append(opts, agg.WithParam("time_zone", dhf.timezone))
	}

	if dhf.keepDescendingOrder {
		opts = append(opts, agg.WithOrder("_key", "desc"))
	}

	if dhf.extendedBounds && (dhf.defaultLowerThreshold != nil || dhf.defaultUpperThreshold != nil) {
		bounds := make(map[string]any)
		if dhf.defaultLowerThreshold != nil {
			bounds["min"] = dhf.defaultLowerThreshold.UnixMilli()
		}
		if dhf.defaultUpperThreshold != nil {
			bounds["max"] = dhf.defaultUpperThreshold.UnixMilli()
		}
		opts = append(opts, agg.WithParam("extended_bounds", bounds))
	}

	builder.Aggregation(dhf.property, agg.NewDateHistogram(dhf.property, string(dhf.interval), opts...))
}

func (dhf *DateHistogramFeature) handle(result *esmap.Result) {
	if dhf.zerobucket {
		return
	}

	histogram, err := agg.Get[*agg.BucketsResult](result, dhf.property)
	if err != nil {
		return
	}

	buckets := histogram.Buckets[:0]
	for _, bucket := range histogram.Buckets {
		if bucket.DocCount == 0 {
			continue
		}
		buckets = append(buckets, bucket)
	}
	histogram.Buckets = buckets
}
