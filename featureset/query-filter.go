package featureset

import (
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/reveald/esmap"
)

// QueryFilterFeature adds a query string filter based on a search parameter.
//
// It creates a query_string query for full-text search across specified fields.
// This is useful for implementing search box functionality.
//
// Example:
//
//	queryFilter := featureset.NewQueryFilterFeature(
//	    featureset.WithFields("name", "company"),
//	)
type QueryFilterFeature struct {
	name   string
	fields []string
}

// QueryFilterOption is a functional option for configuring a QueryFilterFeature.
type QueryFilterOption func(*QueryFilterFeature)

// WithQueryParam sets the parameter name to use for the query string.
func WithQueryParam(name string) QueryFilterOption {
	return func(qff *QueryFilterFeature) {
		qff.name = name
	}
}

// WithFields specifies which fields to search in.
//
// If not specified, the query will search across all fields.
func WithFields(fields ...string) QueryFilterOption {
	return func(qff *QueryFilterFeature) {
		qff.fields = fields
	}
}

// NewQueryFilterFeature creates a new query filter feature with the specified options.
//
// By default, it uses the "q" parameter and searches across all fields.
func NewQueryFilterFeature(opts ...QueryFilterOption) *QueryFilterFeature {
	qff := &QueryFilterFeature{
		name:   "q",
		fields: []string{},
	}

	for _, opt := range opts {
		opt(qff)
	}

	return qff
}

func (qff *QueryFilterFeature) Process(builder *esmap.QueryBuilder, next esmap.FeatureFunc) (*esmap.Result, error) {
	v, ok := builder.Param(qff.name)
	if !ok || v == "" {
		return next(builder)
	}

	lenient := true
	queryStringQuery := types.Query{
		QueryString: &types.QueryStringQuery{
			Query:   v,
			Lenient: &lenient,
		},
	}

	if len(qff.fields) > 0 {
		queryStringQuery.QueryString.Fields = qff.fields
	}

	builder.With(queryStringQuery)
	return next(builder)
}
