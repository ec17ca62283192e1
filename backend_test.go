package esmap

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveald/esmap/agg"
)

type fakeTransport struct {
	status    int
	responses []string
	requests  []*http.Request
	bodies    []string
}

func (t *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}
	t.requests = append(t.requests, req)
	t.bodies = append(t.bodies, body)

	status := t.status
	if status == 0 {
		status = http.StatusOK
	}

	response := "{}"
	if len(t.responses) > 0 {
		response = t.responses[0]
		if len(t.responses) > 1 {
			t.responses = t.responses[1:]
		}
	}

	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header: http.Header{
			"Content-Type":      []string{"application/json"},
			"X-Elastic-Product": []string{"Elasticsearch"},
		},
		Body: io.NopCloser(strings.NewReader(response)),
	}, nil
}

func fakeBackend(t *testing.T, transport *fakeTransport, opts ...ElasticBackendOption) *ElasticBackend {
	t.Helper()
	opts = append([]ElasticBackendOption{
		WithHTTPClient(&http.Client{Transport: transport}),
		WithMaxRetries(0),
	}, opts...)
	backend, err := NewElasticBackend([]string{"localhost:9200"}, opts...)
	require.NoError(t, err)
	return backend
}

const employeesResponse = `{
	"took": 12,
	"timed_out": false,
	"hits": {
		"total": {"value": 1819, "relation": "eq"},
		"hits": [
			{"_id": "1", "_source": {"name": "Alice", "gender": "f"}, "fields": {"age": [31]}},
			{"_id": "2", "_source": {"name": "Bob", "gender": "m"}}
		]
	},
	"aggregations": {
		"genders": {
			"doc_count_error_upper_bound": 0,
			"sum_other_doc_count": 0,
			"buckets": [
				{"key": "m", "doc_count": 1212, "salary": {"value": 2100.5}},
				{"key": "f", "doc_count": 607, "salary": {"value": 1980.25}}
			]
		}
	}
}`

func Test_ElasticBackendExecute(t *testing.T) {
	transport := &fakeTransport{responses: []string{employeesResponse}}
	backend := fakeBackend(t, transport)

	genders := agg.MapperFromMap(map[any]any{"m": "Male", "f": "Female"})

	builder := NewQueryBuilder("employees")
	builder.Selection().Update(WithPageSize(2))
	builder.Aggregation("genders", agg.NewTerms("gender",
		agg.WithInstanceMapper(genders),
		agg.WithAggregation("salary", agg.NewAvg("month_salary")),
	))

	result, err := backend.Execute(context.Background(), builder)
	require.NoError(t, err)

	require.Len(t, transport.requests, 1)
	assert.Equal(t, "/employees/_search", transport.requests[0].URL.Path)
	assert.JSONEq(t, `{
		"query": {"bool": {}},
		"from": 0,
		"size": 2,
		"aggregations": {
			"genders": {
				"terms": {"field": "gender"},
				"aggregations": {"salary": {"avg": {"field": "month_salary"}}}
			}
		}
	}`, transport.bodies[0])

	assert.Equal(t, int64(1819), result.TotalHitCount)
	assert.Equal(t, int64(12), result.Took.Milliseconds())
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "Alice", result.Hits[0]["name"])
	assert.Equal(t, float64(31), result.Hits[0]["age"])
	assert.Equal(t, &ResultPagination{Offset: 0, PageSize: 2}, result.Pagination)

	terms, err := agg.Get[*agg.BucketsResult](result, "genders")
	require.NoError(t, err)
	require.Len(t, terms.Buckets, 2)
	assert.Equal(t, "m", terms.Buckets[0].Key)
	assert.Equal(t, "Male", terms.Buckets[0].Instance)
	assert.Equal(t, "Female", terms.Buckets[1].Instance)

	salary, err := agg.Get[*agg.ValueResult](terms.Buckets[1], "salary")
	require.NoError(t, err)
	assert.InDelta(t, 1980.25, salary.Value, 0.001)
}

func Test_ElasticBackendExecuteWithoutAggregations(t *testing.T) {
	transport := &fakeTransport{responses: []string{`{"took": 1, "hits": {"total": {"value": 0}, "hits": []}}`}}
	backend := fakeBackend(t, transport)

	result, err := backend.Execute(context.Background(), NewQueryBuilder("idx"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.TotalHitCount)
	assert.Empty(t, result.Hits)
	assert.Empty(t, result.Aggregations.AggregationNames())

	_, err = result.Aggregation("missing")
	assert.True(t, errors.Is(err, agg.ErrAggregationNotFound))
}

func Test_ElasticBackendExecuteMissingAggregations(t *testing.T) {
	transport := &fakeTransport{responses: []string{`{"took": 1, "hits": {"total": {"value": 0}, "hits": []}}`}}
	backend := fakeBackend(t, transport)

	builder := NewQueryBuilder("idx")
	builder.Aggregation("genders", agg.NewTerms("gender"))

	result, err := backend.Execute(context.Background(), builder)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, agg.ErrMissingField))
}

func Test_ElasticBackendExecuteMappingFailure(t *testing.T) {
	transport := &fakeTransport{responses: []string{employeesResponse}}
	metrics := NewSearchMetrics("test")
	backend := fakeBackend(t, transport, WithMetrics(metrics))

	failing := agg.NewMapperFunc(func(context.Context, []any) (map[any]any, error) {
		return nil, errors.New("lookup unavailable")
	})

	builder := NewQueryBuilder("employees")
	builder.Aggregation("genders", agg.NewTerms("gender", agg.WithInstanceMapper(failing)))

	result, err := backend.Execute(context.Background(), builder)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Contains(t, err.Error(), "lookup unavailable")

	terms, err := agg.Get[*agg.BucketsResult](result, "genders")
	require.NoError(t, err)
	assert.Nil(t, terms.Buckets[0].Instance)
	assert.Equal(t, int64(1212), terms.Buckets[0].DocCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MappingErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("ok")))
}

func Test_ElasticBackendExecuteErrorResponse(t *testing.T) {
	transport := &fakeTransport{
		status:    http.StatusBadRequest,
		responses: []string{`{"error": {"type": "parsing_exception", "reason": "unknown aggregation type"}, "status": 400}`},
	}
	metrics := NewSearchMetrics("test")
	backend := fakeBackend(t, transport, WithMetrics(metrics))

	result, err := backend.Execute(context.Background(), NewQueryBuilder("idx"))
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "parsing_exception")
	assert.Contains(t, err.Error(), "unknown aggregation type")

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Requests.WithLabelValues("error")))
}

func Test_ElasticBackendExecuteMultiple(t *testing.T) {
	transport := &fakeTransport{responses: []string{`{
		"took": 5,
		"responses": [
			{"took": 2, "hits": {"total": {"value": 3}, "hits": []}, "aggregations": {"avg_price": {"value": 10}}},
			{"took": 3, "hits": {"total": {"value": 4}, "hits": []}, "aggregations": {"max_price": {"value": 99}}}
		]
	}`}}
	backend := fakeBackend(t, transport)

	first := NewQueryBuilder("products")
	first.Aggregation("avg_price", agg.NewAvg("price"))
	second := NewQueryBuilder("products", "archive")
	second.Aggregation("max_price", agg.NewMax("price"))

	results, err := backend.ExecuteMultiple(context.Background(), []*QueryBuilder{first, second})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "/_msearch", transport.requests[0].URL.Path)
	lines := strings.Split(strings.TrimSpace(transport.bodies[0]), "\n")
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index": "products"}`, lines[0])
	assert.JSONEq(t, `{"index": "products,archive"}`, lines[2])

	avg, err := agg.Get[*agg.ValueResult](results[0], "avg_price")
	require.NoError(t, err)
	assert.Equal(t, 10.0, avg.Value)
	assert.Equal(t, int64(3), results[0].TotalHitCount)

	maxPrice, err := agg.Get[*agg.ValueResult](results[1], "max_price")
	require.NoError(t, err)
	assert.Equal(t, 99.0, maxPrice.Value)
}

func Test_ElasticBackendExecuteMultipleItemError(t *testing.T) {
	transport := &fakeTransport{responses: []string{`{
		"responses": [
			{"error": {"type": "index_not_found_exception"}, "status": 404}
		]
	}`}}
	backend := fakeBackend(t, transport)

	results, err := backend.ExecuteMultiple(context.Background(), []*QueryBuilder{NewQueryBuilder("missing")})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Contains(t, err.Error(), "index_not_found_exception")
}

func Test_ElasticBackendExecuteMultipleEmpty(t *testing.T) {
	transport := &fakeTransport{}
	backend := fakeBackend(t, transport)

	results, err := backend.ExecuteMultiple(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, transport.requests)
}

func Test_SearchMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSearchMetrics("esmap")

	require.NoError(t, metrics.Register(reg))
	assert.Error(t, metrics.Register(reg))
}

func Test_UpdateURLScheme(t *testing.T) {
	assert.Equal(t,
		[]string{"https://a:9200", "https://b:9200", "https://c:9200"},
		updateURLScheme([]string{"http://a:9200", "https://b:9200", "c:9200"}, "https"))
}

func Test_NewElasticBackendFromConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
elasticsearch:
  addresses: ["es1:9200", "es2:9200"]
  scheme: https
  username: elastic
  password: secret
`))
	require.NoError(t, err)

	backend, err := NewElasticBackendFromConfig(cfg.Elasticsearch)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://es1:9200", "https://es2:9200"}, backend.config.Addresses)
	assert.Equal(t, "elastic", backend.config.Username)
	assert.Equal(t, 3, backend.config.MaxRetries)
	assert.NotNil(t, backend.Client())

	_, err = NewElasticBackendFromConfig(ElasticsearchConfig{
		Addresses:  []string{"localhost:9200"},
		Scheme:     "http",
		CACertFile: "/does/not/exist.pem",
	})
	assert.Error(t, err)
}
