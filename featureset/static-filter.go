package featureset

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/reveald/esmap"
)

type StaticFilterFeature struct {
	query *types.Query
}

type StaticFilterOption func(*types.BoolQuery)

func WithRequiredProperty(property string) StaticFilterOption {
	return func(query *types.BoolQuery) {
		query.Must = append(query.Must, types.Query{
			Exists: &types.ExistsQuery{Field: property},
		})
	}
}

func WithRequiredValue(property string, value any) StaticFilterOption {
	return func(query *types.BoolQuery) {
		query.Must = append(query.Must, types.Query{
			Term: map[string]types.TermQuery{property: {Value: value}},
		})
	}
}

// WithExcludedValue drops documents where property equals value.
func WithExcludedValue(property string, value any) StaticFilterOption {
	return func(query *types.BoolQuery) {
		query.MustNot = append(query.MustNot, types.Query{
			Term: map[string]types.TermQuery{property: {Value: value}},
		})
	}
}

func NewStaticFilterFeature(opts ...StaticFilterOption) *StaticFilterFeature {
	if len(opts) == 0 {
		return &StaticFilterFeature{nil}
	}

	query := &types.BoolQuery{}

	for _, opt := range opts {
		opt(query)
	}

	return &StaticFilterFeature{&types.Query{Bool: query}}
}

func (sff *StaticFilterFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	if sff.query != nil {
		builder.With(*sff.query)
	}

	return next(builder)
}
