package esmap

import (
	"encoding/json"
	"maps"

	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/pkg/errors"

	"github.com/reveald/esmap/agg"
)

// QueryBuilder collects everything needed for one search request: the
// target indices, a bool query, a post filter, document selection and an
// ordered set of aggregation expressions.
type QueryBuilder struct {
	indices        []string
	boolQuery      *types.BoolQuery
	postFilter     *types.Query
	aggregations   *agg.Aggregations
	selection      *DocumentSelector
	scriptFields   map[string]types.ScriptField
	runtimeFields  map[string]types.RuntimeField
	docValueFields []types.FieldAndFormat
	params         map[string][]string
}

// NewQueryBuilder returns a new base query for a set of indices.
//
// Example:
//
//	builder := esmap.NewQueryBuilder("products")
//	builder.Aggregation("categories", agg.NewTerms("category", agg.WithSize(10)))
func NewQueryBuilder(indices ...string) *QueryBuilder {
	return &QueryBuilder{
		indices:        indices,
		boolQuery:      &types.BoolQuery{},
		aggregations:   agg.NewAggregations(),
		scriptFields:   make(map[string]types.ScriptField),
		runtimeFields:  make(map[string]types.RuntimeField),
		docValueFields: []types.FieldAndFormat{},
		params:         make(map[string][]string),
	}
}

// Indices returns the target indices for the search.
func (qb *QueryBuilder) Indices() []string {
	return qb.indices
}

// SetIndices changes the indices the search targets.
func (qb *QueryBuilder) SetIndices(indices ...string) {
	qb.indices = indices
}

// SetParam sets the values of a named search parameter. Parameters are
// read by features, e.g. a selected filter value or sort option.
//
// Example:
//
//	endpoint.Execute(ctx, func(qb *esmap.QueryBuilder) {
//	    qb.SetParam("gender", "f")
//	    qb.SetParam("sort", "salary-desc")
//	})
func (qb *QueryBuilder) SetParam(name string, values ...string) {
	if len(values) == 0 {
		delete(qb.params, name)
		return
	}
	qb.params[name] = values
}

// Param returns the first value of a named parameter.
func (qb *QueryBuilder) Param(name string) (string, bool) {
	values, ok := qb.params[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Params returns all values of a named parameter.
func (qb *QueryBuilder) Params(name string) []string {
	return qb.params[name]
}

// With adds a "must" clause to the bool query.
//
// Example:
//
//	builder.With(types.Query{
//	    Term: map[string]types.TermQuery{
//	        "active": {Value: true},
//	    },
//	})
func (qb *QueryBuilder) With(query types.Query) {
	qb.boolQuery.Must = append(qb.boolQuery.Must, query)
}

// Without adds a "must_not" clause to the bool query.
//
// Example:
//
//	builder.Without(types.Query{
//	    Term: map[string]types.TermQuery{
//	        "out_of_stock": {Value: true},
//	    },
//	})
func (qb *QueryBuilder) Without(query types.Query) {
	qb.boolQuery.MustNot = append(qb.boolQuery.MustNot, query)
}

// Boost adds a "should" clause to the bool query, raising the score of
// matching documents without requiring them to match.
func (qb *QueryBuilder) Boost(query types.Query) {
	qb.boolQuery.Should = append(qb.boolQuery.Should, query)
}

// Filter adds a "filter" clause to the bool query. Filter clauses restrict
// the matching documents without affecting their score.
//
// Example:
//
//	gte := types.Float64(100)
//	builder.Filter(types.Query{
//	    Range: map[string]types.RangeQuery{
//	        "price": types.NumberRangeQuery{Gte: &gte},
//	    },
//	})
func (qb *QueryBuilder) Filter(query types.Query) {
	qb.boolQuery.Filter = append(qb.boolQuery.Filter, query)
}

func (qb *QueryBuilder) postFilterBool() *types.BoolQuery {
	if qb.postFilter == nil {
		qb.postFilter = &types.Query{Bool: &types.BoolQuery{}}
	}
	return qb.postFilter.Bool
}

// PostFilterWith adds a "must" clause to the post_filter query. Post
// filters are applied after aggregations have been calculated, so they
// narrow the hits without narrowing the buckets.
//
// Example:
//
//	builder.PostFilterWith(types.Query{
//	    Term: map[string]types.TermQuery{
//	        "category": {Value: "electronics"},
//	    },
//	})
func (qb *QueryBuilder) PostFilterWith(query types.Query) {
	b := qb.postFilterBool()
	b.Must = append(b.Must, query)
}

// PostFilterWithout adds a "must_not" clause to the post_filter query.
func (qb *QueryBuilder) PostFilterWithout(query types.Query) {
	b := qb.postFilterBool()
	b.MustNot = append(b.MustNot, query)
}

// PostFilterBoost adds a "should" clause to the post_filter query.
func (qb *QueryBuilder) PostFilterBoost(query types.Query) {
	b := qb.postFilterBool()
	b.Should = append(b.Should, query)
}

// Selection returns the DocumentSelector controlling paging, sorting and
// source filtering for this query.
//
// Example:
//
//	builder.Selection().Update(
//	    esmap.WithPageSize(10),
//	    esmap.WithOffset(20),
//	    esmap.WithSort("price", sortorder.Desc),
//	)
func (qb *QueryBuilder) Selection() *DocumentSelector {
	if qb.selection == nil {
		qb.selection = NewDocumentSelector()
	}
	return qb.selection
}

// Aggregation adds a named aggregation expression to the query. Adding a
// name that already exists replaces the expression in place.
//
// Example:
//
//	builder.Aggregation("genders", agg.NewTerms("gender",
//	    agg.WithAggregation("salary", agg.NewStats("month_salary")),
//	))
func (qb *QueryBuilder) Aggregation(name string, expr agg.Expression) {
	qb.aggregations.Set(name, expr)
}

// Aggregations returns the aggregation expressions added to the query.
// The same container processes the aggregations member of the response.
func (qb *QueryBuilder) Aggregations() *agg.Aggregations {
	return qb.aggregations
}

// RawQuery returns the underlying bool query.
func (qb *QueryBuilder) RawQuery() *types.Query {
	return &types.Query{
		Bool: qb.boolQuery,
	}
}

// WithScriptedField adds a scripted field to the query.
//
// Example:
//
//	source := "doc['price'].value * (1 - doc['discount'].value)"
//	builder.WithScriptedField("discounted_price", &types.Script{Source: &source})
func (qb *QueryBuilder) WithScriptedField(field string, script *types.Script) {
	qb.scriptFields[field] = types.ScriptField{
		Script: *script,
	}
}

// WithRuntimeMappings adds runtime fields to the query.
func (qb *QueryBuilder) WithRuntimeMappings(runtimeMappings map[string]types.RuntimeField) {
	maps.Copy(qb.runtimeFields, runtimeMappings)
}

// DocvalueFields specifies which fields to return as docvalue_fields.
func (qb *QueryBuilder) DocvalueFields(docvalueFields ...string) {
	for _, field := range docvalueFields {
		qb.docValueFields = append(qb.docValueFields, types.FieldAndFormat{
			Field: field,
		})
	}
}

// Build constructs the search body as a map. The aggregations member holds
// the expression container itself, so encoding the map keeps the declared
// aggregation order.
//
// Example:
//
//	body, err := builder.Build()
//	if err != nil {
//	    return err
//	}
//	data, _ := json.Marshal(body)
func (qb *QueryBuilder) Build() (map[string]any, error) {
	data, err := json.Marshal(qb.BuildRequest())
	if err != nil {
		return nil, errors.Wrap(err, "encode search request")
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, errors.Wrap(err, "decode search request")
	}

	if qb.aggregations.Len() > 0 {
		body["aggregations"] = qb.aggregations
	}
	return body, nil
}

// BuildRequest constructs the typed search request for everything but the
// aggregations, which are not expressible as typed aggregations while
// keeping their order.
func (qb *QueryBuilder) BuildRequest() *search.Request {
	request := &search.Request{
		Query:      qb.RawQuery(),
		PostFilter: qb.postFilter,
	}

	selection := qb.Selection()
	request.Size = &selection.pageSize
	request.From = &selection.offset

	if selection.sort != nil {
		request.Sort = selection.sort
	}

	// With script fields and no explicit source filtering, keep _source so
	// hits carry both.
	if len(selection.inclusions) > 0 || len(selection.exclusions) > 0 {
		request.Source_ = types.SourceFilter{
			Excludes: selection.exclusions,
			Includes: selection.inclusions,
		}
	} else if len(qb.scriptFields) > 0 {
		request.Source_ = true
	}

	if len(qb.runtimeFields) > 0 {
		request.RuntimeMappings = qb.runtimeFields
	}
	if len(qb.scriptFields) > 0 {
		request.ScriptFields = qb.scriptFields
	}
	if len(qb.docValueFields) > 0 {
		request.DocvalueFields = qb.docValueFields
	}

	return request
}
