package featureset

import (
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/reveald/esmap"
	"github.com/reveald/esmap/agg"
)

// DynamicFilterFeature aggregates the distinct values of a property with a
// terms aggregation and filters the search on the values selected through
// the parameter of the same name.
//
// Example:
//
//	genders := featureset.NewDynamicFilterFeature("gender",
//	    featureset.WithInstances(genderMapper),
//	)
//
//	result, err := endpoint.Execute(ctx, func(qb *esmap.QueryBuilder) {
//	    qb.SetParam("gender", "f")
//	})
//	buckets, err := genders.Buckets(result)
type DynamicFilterFeature struct {
	property   string
	field      string
	nested     bool
	agg        aggregationSettings
	ignoreSelf bool
	mapper     agg.InstanceMapper
}

type DynamicFilterFeatureOption func(*DynamicFilterFeature)

// WithIgnoreSelf controls whether the aggregation counts are computed on
// the final query. With false the buckets are computed in a global scope
// filtered by the query as it was before this feature added its own filter.
func WithIgnoreSelf(ignoreSelf bool) DynamicFilterFeatureOption {
	return func(dff *DynamicFilterFeature) {
		dff.ignoreSelf = ignoreSelf
	}
}

func WithAggregationOption(opts ...AggregationOption) DynamicFilterFeatureOption {
	return func(dff *DynamicFilterFeature) {
		dff.agg = buildAggregationSettings(opts...)
	}
}

func WithNested(nested bool) DynamicFilterFeatureOption {
	return func(dff *DynamicFilterFeature) {
		dff.nested = nested
	}
}

// WithField overrides the aggregated and filtered field, which defaults to
// the property's keyword sub-field.
func WithField(field string) DynamicFilterFeatureOption {
	return func(dff *DynamicFilterFeature) {
		dff.field = field
	}
}

// WithInstances resolves each bucket key to an instance.
func WithInstances(mapper agg.InstanceMapper) DynamicFilterFeatureOption {
	return func(dff *DynamicFilterFeature) {
		dff.mapper = mapper
	}
}

func NewDynamicFilterFeature(property string, opts ...DynamicFilterFeatureOption) *DynamicFilterFeature {
	dff := &DynamicFilterFeature{
		property:   property,
		field:      fmt.Sprintf("%s.keyword", property),
		nested:     false,
		agg:        buildAggregationSettings(),
		ignoreSelf: true,
	}

	for _, opt := range opts {
		opt(dff)
	}

	return dff
}

func NewNestedDocumentFilterFeature(property string, opts ...DynamicFilterFeatureOption) *DynamicFilterFeature {
	return NewDynamicFilterFeature(property, append(opts, WithNested(true))...)
}

func (dff *DynamicFilterFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	dff.build(builder)
	return next(builder)
}

func (dff *DynamicFilterFeature) path() string {
	return strings.Split(dff.property, ".")[0]
}

func (dff *DynamicFilterFeature) terms() agg.Expression {
	opts := []agg.Option{agg.WithSize(dff.agg.size)}
	if dff.agg.missingValue != "" {
		opts = append(opts, agg.WithParam("missing", dff.agg.missingValue))
	}
	if dff.mapper != nil {
		opts = append(opts, agg.WithInstanceMapper(dff.mapper))
	}
	return agg.NewTerms(dff.field, opts...)
}

func (dff *DynamicFilterFeature) build(builder *esmap.QueryBuilder) {
	switch {
	case dff.nested:
		builder.Aggregation(dff.property,
			agg.NewNested(dff.path(),
				agg.WithAggregation(dff.property, dff.terms())))
	case dff.ignoreSelf:
		builder.Aggregation(dff.property, dff.terms())
	default:
		// Copy the query so the filter added below is not part of the
		// aggregation scope.
		rootCopy := *builder.RawQuery().Bool
		builder.Aggregation(dff.property,
			agg.NewGlobal(
				agg.WithAggregation(dff.property,
					agg.NewFilter(types.Query{Bool: &rootCopy},
						agg.WithAggregation(dff.property, dff.terms())))))
	}

	values := builder.Params(dff.property)
	if len(values) == 0 {
		return
	}

	bq := &types.BoolQuery{}
	for _, v := range values {
		if dff.agg.missingValue != "" && v == dff.agg.missingValue {
			bq.Should = append(bq.Should, types.Query{
				Bool: &types.BoolQuery{
					MustNot: []types.Query{{Exists: &types.ExistsQuery{Field: dff.field}}},
				},
			})
			continue
		}
		bq.Should = append(bq.Should, types.Query{
			Term: map[string]types.TermQuery{dff.field: {Value: v}},
		})
	}

	if !dff.nested {
		builder.With(types.Query{Bool: bq})
	} else {
		builder.With(types.Query{
			Nested: &types.NestedQuery{
				Path:  dff.path(),
				Query: types.Query{Bool: bq},
			},
		})
	}
}

// Buckets returns the terms buckets of the feature's aggregation, looking
// through the nested or global scope it was wrapped in.
func (dff *DynamicFilterFeature) Buckets(result agg.Lookup) (*agg.BucketsResult, error) {
	switch {
	case dff.nested:
		nested, err := agg.Get[*agg.SingleBucketResult](result, dff.property)
		if err != nil {
			return nil, err
		}
		return agg.Get[*agg.BucketsResult](nested, dff.property)
	case dff.ignoreSelf:
		return agg.Get[*agg.BucketsResult](result, dff.property)
	default:
		global, err := agg.Get[*agg.SingleBucketResult](result, dff.property)
		if err != nil {
			return nil, err
		}
		filter, err := agg.Get[*agg.SingleBucketResult](global, dff.property)
		if err != nil {
			return nil, err
		}
		return agg.Get[*agg.BucketsResult](filter, dff.property)
	}
}
