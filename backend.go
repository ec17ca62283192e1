package esmap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ElasticBackend executes QueryBuilders against Elasticsearch and maps the
// responses, aggregations included, into Results.
type ElasticBackend struct {
	client  *elasticsearch.Client
	config  elasticsearch.Config
	logger  *zap.Logger
	metrics *SearchMetrics
}

// ElasticBackendOption is a type for passing functional options to the Elastic Backend constructor.
type ElasticBackendOption func(*ElasticBackend)

// WithScheme defines which scheme to use when communicating with Elasticsearch (default is "http").
//
// Example:
//
//	backend, err := esmap.NewElasticBackend(
//	    []string{"localhost:9200"},
//	    esmap.WithScheme("https"),
//	)
func WithScheme(scheme string) ElasticBackendOption {
	return func(b *ElasticBackend) {
		b.config.Addresses = updateURLScheme(b.config.Addresses, scheme)
	}
}

func updateURLScheme(addresses []string, scheme string) []string {
	updated := make([]string, len(addresses))
	for i, addr := range addresses {
		addr = strings.TrimPrefix(addr, "http://")
		addr = strings.TrimPrefix(addr, "https://")
		updated[i] = scheme + "://" + addr
	}
	return updated
}

// WithCredentials adds username and password to requests to Elasticsearch.
func WithCredentials(username, password string) ElasticBackendOption {
	return func(b *ElasticBackend) {
		b.config.Username = username
		b.config.Password = password
	}
}

// WithAPIKey authenticates requests with a base64 encoded API key.
func WithAPIKey(key string) ElasticBackendOption {
	return func(b *ElasticBackend) {
		b.config.APIKey = key
	}
}

// WithHTTPClient uses the transport of httpClient for requests to Elasticsearch.
//
// Example:
//
//	backend, err := esmap.NewElasticBackend(
//	    []string{"localhost:9200"},
//	    esmap.WithHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
//	)
func WithHTTPClient(httpClient *http.Client) ElasticBackendOption {
	return func(b *ElasticBackend) {
		b.config.Transport = httpClient.Transport
	}
}

// WithCACert configures a custom CA certificate (PEM) for TLS connections.
func WithCACert(cert []byte) ElasticBackendOption {
	return func(b *ElasticBackend) {
		b.config.CACert = cert
	}
}

// WithMaxRetries sets how many times a failed request is retried on
// another node. Zero disables retries.
func WithMaxRetries(n int) ElasticBackendOption {
	return func(b *ElasticBackend) {
		b.config.MaxRetries = n
		b.config.DisableRetry = n == 0
	}
}

// WithLogger sets the logger used for request failures and instance
// mapping errors. The default discards everything.
func WithLogger(logger *zap.Logger) ElasticBackendOption {
	return func(b *ElasticBackend) {
		b.logger = logger
	}
}

// WithMetrics records search requests in m.
func WithMetrics(m *SearchMetrics) ElasticBackendOption {
	return func(b *ElasticBackend) {
		b.metrics = m
	}
}

// NewElasticBackend creates a new backend targeting Elasticsearch. Nodes
// without a scheme are contacted over http.
//
// Example:
//
//	backend, err := esmap.NewElasticBackend(
//	    []string{"localhost:9200"},
//	    esmap.WithCredentials("user", "pass"),
//	    esmap.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewElasticBackend(nodes []string, opts ...ElasticBackendOption) (*ElasticBackend, error) {
	addresses := make([]string, len(nodes))
	for i, node := range nodes {
		if !strings.HasPrefix(node, "http://") && !strings.HasPrefix(node, "https://") {
			addresses[i] = "http://" + node
		} else {
			addresses[i] = node
		}
	}

	backend := &ElasticBackend{
		config: elasticsearch.Config{
			Addresses: addresses,
		},
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(backend)
	}

	client, err := elasticsearch.NewClient(backend.config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	backend.client = client
	return backend, nil
}

// NewElasticBackendFromConfig creates a backend from the elasticsearch
// section of cfg. Options are applied after the configured ones.
func NewElasticBackendFromConfig(cfg ElasticsearchConfig, opts ...ElasticBackendOption) (*ElasticBackend, error) {
	configured := []ElasticBackendOption{
		WithScheme(cfg.Scheme),
		WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Username != "" {
		configured = append(configured, WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.APIKey != "" {
		configured = append(configured, WithAPIKey(cfg.APIKey))
	}
	if cfg.CACertFile != "" {
		cert, err := os.ReadFile(filepath.Clean(cfg.CACertFile))
		if err != nil {
			return nil, errors.Wrapf(err, "read CA certificate %s", cfg.CACertFile)
		}
		configured = append(configured, WithCACert(cert))
	}
	if cfg.Timeout > 0 {
		configured = append(configured, WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		}))
	}

	return NewElasticBackend(cfg.Addresses, append(configured, opts...)...)
}

// Client returns the underlying Elasticsearch client.
func (b *ElasticBackend) Client() *elasticsearch.Client {
	return b.client
}

type searchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total *struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string           `json:"_id"`
			Source map[string]any   `json:"_source"`
			Fields map[string][]any `json:"fields"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations json.RawMessage `json:"aggregations"`

	// Set on failed items of a multi search response.
	Error  json.RawMessage `json:"error"`
	Status int             `json:"status"`
}

func (b *ElasticBackend) mapSearchResult(ctx context.Context, res *searchResponse, builder *QueryBuilder) (*Result, error) {
	var totalHits int64
	if res.Hits.Total != nil {
		totalHits = res.Hits.Total.Value
	}

	hits := make([]map[string]any, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		source := hit.Source
		if source == nil {
			source = make(map[string]any)
		}
		for key, values := range hit.Fields {
			for _, v := range values {
				source[key] = v
			}
		}
		hits = append(hits, source)
	}

	aggregations, err := builder.Aggregations().Process(ctx, res.Aggregations)
	if aggregations == nil {
		return nil, errors.Wrap(err, "process aggregations")
	}
	if err != nil {
		b.logger.Warn("Instance mapping failed",
			zap.Strings("indices", builder.Indices()),
			zap.Error(err),
		)
		if b.metrics != nil {
			b.metrics.MappingErrors.Inc()
		}
	}

	selection := builder.Selection()
	return &Result{
		TotalHitCount: totalHits,
		Hits:          hits,
		Aggregations:  aggregations,
		Pagination: &ResultPagination{
			Offset:   selection.Offset(),
			PageSize: selection.PageSize(),
		},
		Took: time.Duration(res.Took) * time.Millisecond,
	}, err
}

// Execute runs a query against Elasticsearch and returns the results.
//
// When instance mapping fails the Result is still returned, together with
// the combined mapping errors; buckets of the failing mappers have a nil
// Instance.
//
// Example:
//
//	builder := esmap.NewQueryBuilder("employees")
//	builder.Selection().Update(esmap.WithPageSize(0))
//	builder.Aggregation("genders", agg.NewTerms("gender"))
//
//	result, err := backend.Execute(ctx, builder)
//	if result == nil {
//	    return err
//	}
func (b *ElasticBackend) Execute(ctx context.Context, builder *QueryBuilder) (*Result, error) {
	start := time.Now()

	result, err := b.execute(ctx, builder)
	b.observe(start, result, err)
	return result, err
}

func (b *ElasticBackend) execute(ctx context.Context, builder *QueryBuilder) (*Result, error) {
	body, err := builder.Build()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode search body")
	}

	req := esapi.SearchRequest{
		Index: builder.Indices(),
		Body:  bytes.NewReader(data),
	}

	res, err := req.Do(ctx, b.client)
	if err != nil {
		b.logger.Error("Search request failed",
			zap.Strings("indices", builder.Indices()),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "elasticsearch request failed")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, errors.Wrap(err, "decode search response")
	}
	if sr.TimedOut {
		b.logger.Warn("Search timed out, results are partial",
			zap.Strings("indices", builder.Indices()),
		)
	}

	return b.mapSearchResult(ctx, &sr, builder)
}

func (b *ElasticBackend) observe(start time.Time, result *Result, err error) {
	if b.metrics == nil {
		return
	}
	status := "ok"
	if result == nil && err != nil {
		status = "error"
	}
	b.metrics.Requests.WithLabelValues(status).Inc()
	b.metrics.Duration.Observe(time.Since(start).Seconds())
}

func responseError(res *esapi.Response) error {
	data, _ := io.ReadAll(res.Body)

	var e struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &e); err == nil && e.Error.Type != "" {
		return errors.Errorf("elasticsearch returned %s: %s: %s", res.Status(), e.Error.Type, e.Error.Reason)
	}
	return errors.Errorf("elasticsearch returned %s: %s", res.Status(), strings.TrimSpace(string(data)))
}

// ExecuteMultiple sends all builders in a single multi search request. The
// results are in the same order as the builders. A failed item fails the
// whole call; instance mapping errors are combined and returned with the
// results.
//
// Example:
//
//	electronics := esmap.NewQueryBuilder("products")
//	electronics.With(types.Query{Term: map[string]types.TermQuery{"category": {Value: "electronics"}}})
//
//	clothing := esmap.NewQueryBuilder("products")
//	clothing.With(types.Query{Term: map[string]types.TermQuery{"category": {Value: "clothing"}}})
//
//	results, err := backend.ExecuteMultiple(ctx, []*esmap.QueryBuilder{electronics, clothing})
func (b *ElasticBackend) ExecuteMultiple(ctx context.Context, builders []*QueryBuilder) ([]*Result, error) {
	if len(builders) == 0 {
		return []*Result{}, nil
	}

	start := time.Now()
	results, err := b.executeMultiple(ctx, builders)
	for _, r := range results {
		b.observe(start, r, nil)
	}
	if results == nil {
		b.observe(start, nil, err)
	}
	return results, err
}

func (b *ElasticBackend) executeMultiple(ctx context.Context, builders []*QueryBuilder) ([]*Result, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, builder := range builders {
		body, err := builder.Build()
		if err != nil {
			return nil, errors.Wrapf(err, "request %d", i)
		}
		header := map[string]any{"index": strings.Join(builder.Indices(), ",")}
		if err := enc.Encode(header); err != nil {
			return nil, errors.Wrapf(err, "encode header %d", i)
		}
		if err := enc.Encode(body); err != nil {
			return nil, errors.Wrapf(err, "encode body %d", i)
		}
	}

	req := esapi.MsearchRequest{
		Body: &buf,
	}

	res, err := req.Do(ctx, b.client)
	if err != nil {
		b.logger.Error("Multi search request failed",
			zap.Int("searches", len(builders)),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "elasticsearch request failed")
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res)
	}

	var msr struct {
		Responses []searchResponse `json:"responses"`
	}
	if err := json.NewDecoder(res.Body).Decode(&msr); err != nil {
		return nil, errors.Wrap(err, "decode multi search response")
	}
	if len(msr.Responses) != len(builders) {
		return nil, errors.Errorf("multi search returned %d responses for %d requests", len(msr.Responses), len(builders))
	}

	var (
		results = make([]*Result, 0, len(builders))
		errs    error
	)
	for i := range msr.Responses {
		sr := &msr.Responses[i]
		if len(sr.Error) > 0 && string(sr.Error) != "null" {
			return nil, errors.Errorf("request %d failed with status %d: %s", i, sr.Status, sr.Error)
		}

		result, err := b.mapSearchResult(ctx, sr, builders[i])
		if result == nil {
			return nil, errors.Wrapf(err, "request %d", i)
		}
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "request %d", i))
		}
		results = append(results, result)
	}
	return results, errs
}
