package esmap

import (
	"encoding/json"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveald/esmap/agg"
)

func termQuery(field string, value any) types.Query {
	return types.Query{
		Term: map[string]types.TermQuery{
			field: {Value: value},
		},
	}
}

func built(t *testing.T, builder *QueryBuilder) string {
	t.Helper()
	body, err := builder.Build()
	require.NoError(t, err)
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return string(data)
}

func Test_QueryBuilder(t *testing.T) {
	table := []struct {
		name     string
		prepare  func(*QueryBuilder)
		expected string
	}{
		{
			"empty",
			func(*QueryBuilder) {},
			`{"query": {"bool": {}}, "from": 0, "size": 24}`,
		},
		{
			"with",
			func(qb *QueryBuilder) { qb.With(termQuery("property", "value")) },
			`{"query": {"bool": {"must": [{"term": {"property": {"value": "value"}}}]}}, "from": 0, "size": 24}`,
		},
		{
			"without",
			func(qb *QueryBuilder) { qb.Without(termQuery("property", "value")) },
			`{"query": {"bool": {"must_not": [{"term": {"property": {"value": "value"}}}]}}, "from": 0, "size": 24}`,
		},
		{
			"boost",
			func(qb *QueryBuilder) { qb.Boost(termQuery("property", "value")) },
			`{"query": {"bool": {"should": [{"term": {"property": {"value": "value"}}}]}}, "from": 0, "size": 24}`,
		},
		{
			"filter",
			func(qb *QueryBuilder) { qb.Filter(termQuery("property", "value")) },
			`{"query": {"bool": {"filter": [{"term": {"property": {"value": "value"}}}]}}, "from": 0, "size": 24}`,
		},
		{
			"post filter",
			func(qb *QueryBuilder) {
				qb.PostFilterWith(termQuery("a", 1))
				qb.PostFilterWithout(termQuery("b", 2))
			},
			`{
				"query": {"bool": {}},
				"post_filter": {"bool": {"must": [{"term": {"a": {"value": 1}}}], "must_not": [{"term": {"b": {"value": 2}}}]}},
				"from": 0,
				"size": 24
			}`,
		},
		{
			"selection",
			func(qb *QueryBuilder) {
				qb.Selection().Update(WithPageSize(0), WithOffset(5), WithProperties("id"))
			},
			`{"query": {"bool": {}}, "from": 5, "size": 0, "_source": {"includes": ["id"]}}`,
		},
		{
			"aggregations",
			func(qb *QueryBuilder) {
				qb.Aggregation("genders", agg.NewTerms("gender",
					agg.WithAggregation("salary", agg.NewStats("month_salary")),
				))
				qb.Aggregation("avg_price", agg.NewAvg("price"))
			},
			`{
				"query": {"bool": {}},
				"from": 0,
				"size": 24,
				"aggregations": {
					"genders": {
						"terms": {"field": "gender"},
						"aggregations": {"salary": {"stats": {"field": "month_salary"}}}
					},
					"avg_price": {"avg": {"field": "price"}}
				}
			}`,
		},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			builder := NewQueryBuilder("idx")
			tt.prepare(builder)
			assert.JSONEq(t, tt.expected, built(t, builder))
		})
	}
}

func Test_QueryBuilderAggregationOrder(t *testing.T) {
	builder := NewQueryBuilder("idx")
	builder.Aggregation("b", agg.NewAvg("price"))
	builder.Aggregation("a", agg.NewMin("price"))
	builder.Aggregation("b", agg.NewMax("price"))

	assert.Equal(t, []string{"b", "a"}, builder.Aggregations().Names())

	body, err := builder.Build()
	require.NoError(t, err)
	data, err := json.Marshal(body["aggregations"])
	require.NoError(t, err)
	assert.Equal(t, `{"b":{"max":{"field":"price"}},"a":{"min":{"field":"price"}}}`, string(data))
}

func Test_QueryBuilderIndices(t *testing.T) {
	builder := NewQueryBuilder("a", "b")
	assert.Equal(t, []string{"a", "b"}, builder.Indices())

	builder.SetIndices("c")
	assert.Equal(t, []string{"c"}, builder.Indices())
}

func Test_QueryBuilderParams(t *testing.T) {
	builder := NewQueryBuilder("idx")

	_, ok := builder.Param("gender")
	assert.False(t, ok)

	builder.SetParam("gender", "f", "m")
	v, ok := builder.Param("gender")
	assert.True(t, ok)
	assert.Equal(t, "f", v)
	assert.Equal(t, []string{"f", "m"}, builder.Params("gender"))

	builder.SetParam("gender")
	assert.Empty(t, builder.Params("gender"))
}
