// Command esagg runs an aggregation definition against Elasticsearch and
// prints the processed result tree as JSON.
//
//	esagg --config esmap.yaml --index employees --aggs aggs.yaml \
//	    --resolve companies=companies --query '{"term": {"active": true}}'
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/coocood/freecache"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/reveald/esmap"
	"github.com/reveald/esmap/agg"
	"github.com/reveald/esmap/featureset"
	"github.com/reveald/esmap/mapper"
)

var (
	configFile = flag.StringP("config", "c", "", "Path to the YAML configuration file.")
	indices    = flag.StringSliceP("index", "i", nil, "Index to search, repeatable. Overrides search.indices.")
	aggsFile   = flag.StringP("aggs", "a", "", "Path to the aggregations definition (JSON or YAML).")
	queryJSON  = flag.StringP("query", "q", "", "Query DSL clause restricting the aggregated documents.")
	resolve    = flag.StringArray("resolve", nil, "Resolve bucket keys of PATH to documents of INDEX, as PATH=INDEX.")
	pageSize   = flag.Int("size", -1, "Number of hits to return. Overrides search.page_size.")
	logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error). Overrides logging.level.")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Aggregation failed", zap.Error(err))
	}
}

func loadConfig() (esmap.Config, error) {
	var (
		cfg esmap.Config
		err error
	)
	if *configFile != "" {
		cfg, err = esmap.LoadConfig(*configFile)
	} else {
		cfg, err = esmap.ParseConfig([]byte("{}"))
	}
	if err != nil {
		return esmap.Config{}, err
	}

	if len(*indices) > 0 {
		cfg.Search.Indices = *indices
	}
	if *pageSize >= 0 {
		cfg.Search.PageSize = *pageSize
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return esmap.Config{}, errors.Wrap(err, "invalid config")
	}
	if len(cfg.Search.Indices) == 0 {
		return esmap.Config{}, errors.New("no index given, use --index or search.indices")
	}
	if *aggsFile == "" {
		return esmap.Config{}, errors.New("no aggregations given, use --aggs")
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(l)
	cfg.OutputPaths = []string{"stderr"}

	logger, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger, nil
}

func run(ctx context.Context, cfg esmap.Config, logger *zap.Logger) error {
	backend, err := esmap.NewElasticBackendFromConfig(cfg.Elasticsearch, esmap.WithLogger(logger))
	if err != nil {
		return err
	}

	mappers, err := resolvers(backend, cfg.Mapper, logger)
	if err != nil {
		return err
	}

	aggs, err := loadAggregations(*aggsFile, mappers...)
	if err != nil {
		return err
	}

	endpoint := esmap.NewEndpoint(backend, esmap.WithIndices(cfg.Search.Indices...))
	for _, name := range aggs.Names() {
		expr, _ := aggs.Get(name)
		if err := endpoint.Register(featureset.NewAggregationFeature(name, expr)); err != nil {
			return err
		}
	}

	var query *types.Query
	if *queryJSON != "" {
		query = &types.Query{}
		if err := json.Unmarshal([]byte(*queryJSON), query); err != nil {
			return errors.Wrap(err, "parse --query")
		}
	}

	logger.Info("Running aggregations",
		zap.Strings("indices", cfg.Search.Indices),
		zap.Strings("aggregations", aggs.Names()),
	)

	result, err := endpoint.Execute(ctx, func(qb *esmap.QueryBuilder) {
		qb.Selection().Update(esmap.WithPageSize(cfg.Search.PageSize))
		if query != nil {
			qb.With(*query)
		}
	})
	if result == nil {
		return err
	}
	if err != nil {
		logger.Warn("Instance mapping failed, printing unresolved buckets", zap.Error(err))
	}

	logger.Debug("Search completed",
		zap.Int64("total_hits", result.TotalHitCount),
		zap.Duration("took", result.Took),
		zap.Duration("duration", result.Duration),
	)

	out := struct {
		TotalHits    int64            `json:"total_hits"`
		Hits         []map[string]any `json:"hits,omitempty"`
		Aggregations *agg.Results     `json:"aggregations"`
	}{result.TotalHitCount, result.Hits, result.Aggregations}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode result")
	}
	fmt.Println(string(data))
	return nil
}

// resolvers attaches a cached document mapper to every --resolve path.
// Paths naming the same index share one mapper, so each index is queried
// once per search.
func resolvers(backend *esmap.ElasticBackend, cfg esmap.MapperConfig, logger *zap.Logger) ([]agg.DecodeOption, error) {
	if len(*resolve) == 0 {
		return nil, nil
	}

	var (
		cache   = freecache.NewCache(cfg.CacheSizeBytes)
		byIndex = make(map[string]agg.InstanceMapper)
		opts    = make([]agg.DecodeOption, 0, len(*resolve))
	)
	for _, r := range *resolve {
		path, index, ok := strings.Cut(r, "=")
		if !ok || path == "" || index == "" {
			return nil, errors.Errorf("invalid --resolve %q, expected PATH=INDEX", r)
		}

		m, ok := byIndex[index]
		if !ok {
			documents := mapper.NewDocuments(backend.Client(), index, mapper.WithLogger(logger))
			cached := mapper.NewCached[map[string]any](documents, cache,
				mapper.WithLogger(logger),
				mapper.WithTTL(cfg.CacheTTL),
				mapper.WithNamespace(index+":"),
			)
			m = mapper.NewInstrumented(cached, index, mapper.WithLogger(logger))
			byIndex[index] = m
		}
		opts = append(opts, agg.WithMapperAt(path, m))
	}
	return opts, nil
}

func loadAggregations(path string, opts ...agg.DecodeOption) (*agg.Aggregations, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "read aggregations %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var definition map[string]any
		if err := yaml.Unmarshal(data, &definition); err != nil {
			return nil, errors.Wrapf(err, "parse aggregations %s", path)
		}
		return agg.Decode(definition, opts...)
	default:
		return agg.DecodeJSON(data, opts...)
	}
}
