package featureset

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/reveald/esmap"
	"github.com/reveald/esmap/agg"
)

const defaultAggregationSize = 10

type aggregationSettings struct {
	size         int
	missingValue string
}

type AggregationOption func(*aggregationSettings)

func WithAggregationSize(size int) AggregationOption {
	return func(as *aggregationSettings) {
		as.size = size
	}
}

// WithMissingValueAs configures filter features to include missing values in aggregations
// and allow filtering by a custom label.
//
// When called with a label, the feature will:
//   - Set the terms aggregation "missing" parameter, so documents without a value
//     are counted in a bucket keyed by the label
//   - Support filtering by the label via the feature parameter (e.g. category=no-category)
//   - Match documents where the field is either completely missing OR explicitly null
//
// What counts as "missing":
//   - Field completely absent from the document
//   - Field with a null value
//   - Empty array []
//   - Array containing only nulls [null]
//
// Empty strings, zero and false are values, not missing.
//
// Example:
//
//	categoryFilter := featureset.NewDynamicFilterFeature(
//	    "category",
//	    featureset.WithAggregationOption(
//	        featureset.WithAggregationSize(20),
//	        featureset.WithMissingValueAs("no-category"),
//	    ),
//	)
func WithMissingValueAs(value string) AggregationOption {
	return func(as *aggregationSettings) {
		as.missingValue = value
	}
}

func buildAggregationSettings(opts ...AggregationOption) aggregationSettings {
	settings := aggregationSettings{
		size: defaultAggregationSize,
	}

	for _, opt := range opts {
		opt(&settings)
	}

	return settings
}

// ResultHandler receives the processed result of an AggregationFeature
// together with the search result it belongs to.
type ResultHandler func(agg.Result, *esmap.Result) error

// AggregationFeature adds one named aggregation expression to every search
// and optionally hands the typed result to a handler.
//
// Example:
//
//	salaries := featureset.NewAggregationFeature("salary",
//	    agg.NewStats("month_salary"),
//	    featureset.WithResultHandler(func(r agg.Result, _ *esmap.Result) error {
//	        stats := r.(*agg.StatsResult)
//	        log.Printf("average salary %.2f", stats.Avg)
//	        return nil
//	    }),
//	)
type AggregationFeature struct {
	name    string
	expr    agg.Expression
	handler ResultHandler
}

type AggregationFeatureOption func(*AggregationFeature)

// WithResultHandler registers a callback for the processed aggregation.
func WithResultHandler(handler ResultHandler) AggregationFeatureOption {
	return func(af *AggregationFeature) {
		af.handler = handler
	}
}

func NewAggregationFeature(name string, expr agg.Expression, opts ...AggregationFeatureOption) *AggregationFeature {
	af := &AggregationFeature{
		name: name,
		expr: expr,
	}

	for _, opt := range opts {
		opt(af)
	}

	return af
}

func (af *AggregationFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	builder.Aggregation(af.name, af.expr)

	r, err := next(builder)
	if r == nil {
		return nil, err
	}

	if af.handler == nil {
		return r, err
	}

	result, lerr := r.Aggregation(af.name)
	if lerr != nil {
		return r, multierr.Append(err, lerr)
	}
	if herr := af.handler(result, r); herr != nil {
		return r, multierr.Append(err, errors.Wrapf(herr, "aggregation %q", af.name))
	}

	return r, err
}
