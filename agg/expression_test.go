package agg

import (
	"encoding/json"
	"testing"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serialized(t *testing.T, expr Expression) string {
	t.Helper()
	data, err := json.Marshal(expr.Serialize())
	require.NoError(t, err)
	return string(data)
}

func term(field string, value any) types.Query {
	return types.Query{
		Term: map[string]types.TermQuery{
			field: {Value: value},
		},
	}
}

func Test_Serialize(t *testing.T) {
	table := []struct {
		name     string
		expr     Expression
		expected string
	}{
		{"avg", NewAvg("price"), `{"avg": {"field": "price"}}`},
		{"min", NewMin("price"), `{"min": {"field": "price"}}`},
		{"max", NewMax("price"), `{"max": {"field": "price"}}`},
		{"sum", NewSum("price"), `{"sum": {"field": "price"}}`},
		{"value count", NewValueCount("price"), `{"value_count": {"field": "price"}}`},
		{"cardinality", NewCardinality("user", WithParam("precision_threshold", 100)), `{"cardinality": {"field": "user", "precision_threshold": 100}}`},
		{"stats", NewStats("grade"), `{"stats": {"field": "grade"}}`},
		{"extended stats", NewExtendedStats("grade"), `{"extended_stats": {"field": "grade"}}`},
		{"percentiles", NewPercentiles("load_time", []float64{95, 99, 99.9}), `{"percentiles": {"field": "load_time", "percents": [95, 99, 99.9]}}`},
		{"percentiles without percents", NewPercentiles("load_time", nil), `{"percentiles": {"field": "load_time"}}`},
		{"percentile ranks", NewPercentileRanks("load_time", []float64{15, 30}), `{"percentile_ranks": {"field": "load_time", "values": [15, 30]}}`},
		{"global", NewGlobal(), `{"global": {}}`},
		{"filter", NewFilter(term("company", 1)), `{"filter": {"term": {"company": {"value": 1}}}}`},
		{"filter ignores params", NewFilter(term("company", 1), WithSize(5)), `{"filter": {"term": {"company": {"value": 1}}}}`},
		{"meta", NewTerms("status", WithMeta(map[string]any{"label": "Status"})), `{"terms": {"field": "status"}, "meta": {"label": "Status"}}`},
		{"nested", NewNested("resellers"), `{"nested": {"path": "resellers"}}`},
		{"reverse nested to root", NewReverseNested(""), `{"reverse_nested": {}}`},
		{"missing", NewMissing("price"), `{"missing": {"field": "price"}}`},
		{"terms", NewTerms("status"), `{"terms": {"field": "status"}}`},
		{"terms with options", NewTerms("status", WithSize(5), WithMinDocCount(2), WithOrder("_count", "desc")), `{"terms": {"field": "status", "size": 5, "min_doc_count": 2, "order": {"_count": "desc"}}}`},
		{"significant terms", NewSignificantTerms("crime_type"), `{"significant_terms": {"field": "crime_type"}}`},
		{"histogram", NewHistogram("price", 50), `{"histogram": {"field": "price", "interval": 50}}`},
		{"date histogram calendar unit", NewDateHistogram("created_at", "month"), `{"date_histogram": {"field": "created_at", "calendar_interval": "month"}}`},
		{"date histogram short calendar unit", NewDateHistogram("created_at", "1M", WithFormat("yyyy-MM")), `{"date_histogram": {"field": "created_at", "calendar_interval": "1M", "format": "yyyy-MM"}}`},
		{"date histogram fixed unit", NewDateHistogram("created_at", "7d"), `{"date_histogram": {"field": "created_at", "fixed_interval": "7d"}}`},
		{"date histogram forced fixed", NewDateHistogram("created_at", "1d", WithFixedInterval()), `{"date_histogram": {"field": "created_at", "fixed_interval": "1d"}}`},
		{"date histogram forced calendar", NewDateHistogram("created_at", "2d", WithCalendarInterval()), `{"date_histogram": {"field": "created_at", "calendar_interval": "2d"}}`},
		{"range", NewRange("month_salary", []RangeBound{{To: 1000}, {From: 1000, To: 2000}, {Key: "rich", From: 3000}}), `{"range": {"field": "month_salary", "ranges": [{"to": 1000}, {"from": 1000, "to": 2000}, {"key": "rich", "from": 3000}]}}`},
		{"date range", NewDateRange("created_at", []RangeBound{{From: "now-1M/M"}}), `{"date_range": {"field": "created_at", "ranges": [{"from": "now-1M/M"}]}}`},
		{"filters", NewFilters([]types.Query{term("body", "error"), term("body", "warning")}), `{"filters": {"filters": [{"term": {"body": {"value": "error"}}}, {"term": {"body": {"value": "warning"}}}]}}`},
		{"keyed filters", NewKeyedFilters(map[string]types.Query{"errors": term("body", "error"), "warnings": term("body", "warning")}), `{"filters": {"filters": {"errors": {"term": {"body": {"value": "error"}}}, "warnings": {"term": {"body": {"value": "warning"}}}}}}`},
	}

	for _, tt := range table {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.expected, serialized(t, tt.expr))
		})
	}
}

func Test_SerializeSubAggregations(t *testing.T) {
	a := NewGlobal(
		WithAggregation("selling_type", NewTerms("selling_type",
			WithAggregation("price_avg", NewAvg("price")),
			WithAggregation("price_min", NewMin("price")),
			WithAggregation("price_max", NewMax("price")),
			WithAggregation("price_hist", NewHistogram("price", 50)),
		)),
		WithAggregation("price_avg", NewAvg("price")),
	)

	assert.JSONEq(t, `{
		"global": {},
		"aggregations": {
			"selling_type": {
				"terms": {"field": "selling_type"},
				"aggregations": {
					"price_avg": {"avg": {"field": "price"}},
					"price_min": {"min": {"field": "price"}},
					"price_max": {"max": {"field": "price"}},
					"price_hist": {"histogram": {"field": "price", "interval": 50}}
				}
			},
			"price_avg": {"avg": {"field": "price"}}
		}
	}`, serialized(t, a))

	assert.Equal(t, []string{"selling_type", "price_avg"}, a.SubAggregations().Names())
}

func Test_SerializeNested(t *testing.T) {
	a := NewNested("resellers", WithAggregation("min_price", NewMin("resellers.price")))

	assert.JSONEq(t, `{
		"nested": {"path": "resellers"},
		"aggregations": {
			"min_price": {"min": {"field": "resellers.price"}}
		}
	}`, serialized(t, a))
}

func Test_AggregationsOrder(t *testing.T) {
	aggs := NewAggregations().
		Set("b", NewAvg("price")).
		Set("a", NewTerms("status", WithAggregation("z", NewMin("price")), WithAggregation("y", NewMax("price")))).
		Set("c", NewSum("price"))

	assert.Equal(t, []string{"b", "a", "c"}, aggs.Names())
	assert.Equal(t, 3, aggs.Len())

	data, err := json.Marshal(aggs)
	require.NoError(t, err)
	assert.Equal(t,
		`{"b":{"avg":{"field":"price"}},"a":{"aggregations":{"z":{"min":{"field":"price"}},"y":{"max":{"field":"price"}}},"terms":{"field":"status"}},"c":{"sum":{"field":"price"}}}`,
		string(data))
}

func Test_AggregationsReplaceInPlace(t *testing.T) {
	aggs := NewAggregations().
		Set("a", NewAvg("price")).
		Set("b", NewMin("price")).
		Set("a", NewMax("price"))

	assert.Equal(t, []string{"a", "b"}, aggs.Names())

	expr, ok := aggs.Get("a")
	require.True(t, ok)
	assert.Equal(t, KindMax, expr.Kind())

	_, ok = aggs.Get("missing")
	assert.False(t, ok)
}

func Test_EmptyAggregations(t *testing.T) {
	var aggs *Aggregations

	assert.Equal(t, 0, aggs.Len())
	assert.Empty(t, aggs.Names())
	assert.Empty(t, aggs.Serialize())

	data, err := json.Marshal(NewAggregations())
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}
