package esmap

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config describes how to reach Elasticsearch and what to search by default.
type Config struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Search        SearchConfig        `yaml:"search"`
	Mapper        MapperConfig        `yaml:"mapper"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ElasticsearchConfig holds connection settings.
type ElasticsearchConfig struct {
	Addresses  []string      `yaml:"addresses"`
	Scheme     string        `yaml:"scheme"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	APIKey     string        `yaml:"api_key"`
	CACertFile string        `yaml:"ca_cert_file"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

// SearchConfig holds defaults for searches built from configuration.
type SearchConfig struct {
	Indices  []string `yaml:"indices"`
	PageSize int      `yaml:"page_size"` // 0 returns aggregations only
}

// MapperConfig holds instance mapper cache settings.
type MapperConfig struct {
	CacheSizeBytes int           `yaml:"cache_size_bytes"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// LoadConfig reads a YAML configuration file. ${VAR} and ${VAR:-default}
// are replaced with environment variables before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, applies defaults and validates it.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(data), &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if len(c.Elasticsearch.Addresses) == 0 {
		c.Elasticsearch.Addresses = []string{"localhost:9200"}
	}
	if c.Elasticsearch.Scheme == "" {
		c.Elasticsearch.Scheme = "http"
	}
	if c.Elasticsearch.MaxRetries <= 0 {
		c.Elasticsearch.MaxRetries = 3
	}
	if c.Elasticsearch.Timeout <= 0 {
		c.Elasticsearch.Timeout = 30 * time.Second
	}
	if c.Mapper.CacheSizeBytes <= 0 {
		c.Mapper.CacheSizeBytes = 16 * 1024 * 1024
	}
	if c.Mapper.CacheTTL <= 0 {
		c.Mapper.CacheTTL = 5 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Elasticsearch.Scheme {
	case "http", "https":
	default:
		return errors.Errorf("elasticsearch.scheme must be \"http\" or \"https\", got %q", c.Elasticsearch.Scheme)
	}
	if c.Elasticsearch.APIKey != "" && c.Elasticsearch.Username != "" {
		return errors.New("elasticsearch.api_key and elasticsearch.username are mutually exclusive")
	}
	if c.Search.PageSize < 0 {
		return errors.Errorf("search.page_size must not be negative, got %d", c.Search.PageSize)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, fallback, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = fallback
		}
		return []byte(val)
	})
}
