package featureset

import (
	"strconv"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/reveald/esmap"
	"github.com/reveald/esmap/agg"
)

// BooleanFilterFeature counts the true and false values of a boolean
// property and filters on the parameter of the same name when it parses
// as a boolean.
type BooleanFilterFeature struct {
	property string
	agg      aggregationSettings
}

func NewBooleanFilterFeature(property string, opts ...AggregationOption) *BooleanFilterFeature {
	return &BooleanFilterFeature{
		property: property,
		agg:      buildAggregationSettings(opts...),
	}
}

func (bff *BooleanFilterFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	bff.build(builder)
	return next(builder)
}

func (bff *BooleanFilterFeature) build(builder *esmap.QueryBuilder) {
	opts := []agg.Option{agg.WithSize(bff.agg.size)}
	if bff.agg.missingValue != "" {
		opts = append(opts, agg.WithParam("missing", bff.agg.missingValue))
	}
	builder.Aggregation(bff.property, agg.NewTerms(bff.property, opts...))

	v, ok := builder.Param(bff.property)
	if !ok {
		return
	}

	bl, err := strconv.ParseBool(v)
	if err != nil {
		return
	}

	builder.With(types.Query{
		Term: map[string]types.TermQuery{bff.property: {Value: bl}},
	})
}
