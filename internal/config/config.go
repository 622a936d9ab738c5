// Package config provides configuration loading for dtiset.
//
// Configuration comes from an optional YAML file overridden by DTISET_*
// environment variables. Command-line flags are applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults for a ChEMBL extraction run.
const (
	DefaultChEMBLVersion    = "34"
	DefaultMaxConns         = 4
	DefaultQueryTimeout     = 30 * time.Minute
	DefaultMinEvidenceCount = 1
	DefaultMinCompounds     = 100
	DefaultOutputPath       = "output"
	DefaultDelimiter        = ";"
	DefaultCacheTTL         = 24 * time.Hour
	DefaultMetricsJob       = "dtiset"
)

// Config holds the complete dtiset configuration.
type Config struct {
	Source      SourceConfig      `koanf:"source"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Subsets     SubsetsConfig     `koanf:"subsets"`
	Checks      ChecksConfig      `koanf:"checks"`
	Output      OutputConfig      `koanf:"output"`
	Cache       CacheConfig       `koanf:"cache"`
	Metrics     MetricsConfig     `koanf:"metrics"`
	Logging     LoggingConfig     `koanf:"logging"`
	Telemetry   TelemetryConfig   `koanf:"telemetry"`
}

// SourceConfig describes the ChEMBL PostgreSQL instance.
type SourceConfig struct {
	PostgresDSN   Secret   `koanf:"postgres_dsn"`
	ChEMBLVersion string   `koanf:"chembl_version"`
	MaxConns      int32    `koanf:"max_conns"`
	QueryTimeout  Duration `koanf:"query_timeout"`
}

// AggregationConfig controls which measurements are folded into pairs.
type AggregationConfig struct {
	// AllSources includes non-literature sources such as BindingDB.
	AllSources       bool `koanf:"all_sources"`
	MinEvidenceCount int  `koanf:"min_evidence_count"`
}

// LiteratureOnly reports whether evidence is restricted to literature.
func (a AggregationConfig) LiteratureOnly() bool {
	return !a.AllSources
}

// SubsetsConfig holds the per-target compound thresholds.
type SubsetsConfig struct {
	MinCompoundsBF int `koanf:"min_compounds_bf"`
	MinCompoundsB  int `koanf:"min_compounds_b"`
}

// ChecksConfig controls invariant checking.
type ChecksConfig struct {
	// Strict fails the run on any invariant violation.
	Strict bool `koanf:"strict"`
}

// OutputConfig controls written artifacts.
type OutputConfig struct {
	Path      string `koanf:"path"`
	Delimiter string `koanf:"delimiter"`
	WriteBF   bool   `koanf:"write_bf"`
	WriteB    bool   `koanf:"write_b"`
}

// CacheConfig configures the Redis mechanism snapshot cache.
type CacheConfig struct {
	Enabled  bool     `koanf:"enabled"`
	RedisURL Secret   `koanf:"redis_url"`
	TTL      Duration `koanf:"ttl"`
}

// MetricsConfig configures the Prometheus Pushgateway push at run end.
type MetricsConfig struct {
	PushgatewayURL string `koanf:"pushgateway_url"`
	Job            string `koanf:"job"`
}

// LoggingConfig is the subset of logging options exposed in the file.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig is the subset of OpenTelemetry options exposed in the file.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Source.ChEMBLVersion == "" {
		errs = append(errs, errors.New("source.chembl_version is required"))
	}
	if c.Source.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("source.max_conns must be positive, got %d", c.Source.MaxConns))
	}
	if c.Source.QueryTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("source.query_timeout must be positive"))
	}
	if c.Aggregation.MinEvidenceCount < 1 {
		errs = append(errs, fmt.Errorf("aggregation.min_evidence_count must be >= 1, got %d", c.Aggregation.MinEvidenceCount))
	}
	if c.Subsets.MinCompoundsBF < 1 || c.Subsets.MinCompoundsB < 1 {
		errs = append(errs, errors.New("subsets thresholds must be >= 1"))
	}
	if len([]rune(c.Output.Delimiter)) != 1 {
		errs = append(errs, fmt.Errorf("output.delimiter must be a single character, got %q", c.Output.Delimiter))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path is required"))
	}
	if c.Cache.Enabled {
		switch scheme := c.Cache.RedisURL.Scheme(); {
		case !c.Cache.RedisURL.IsSet():
			errs = append(errs, errors.New("cache.redis_url is required when cache is enabled"))
		case scheme != "redis" && scheme != "rediss":
			errs = append(errs, fmt.Errorf("cache.redis_url must use the redis or rediss scheme, got %q", scheme))
		}
		if c.Cache.TTL.Duration() <= 0 {
			errs = append(errs, errors.New("cache.ttl must be positive"))
		}
	}
	if c.Metrics.PushgatewayURL != "" {
		if _, err := url.ParseRequestURI(c.Metrics.PushgatewayURL); err != nil {
			errs = append(errs, fmt.Errorf("metrics.pushgateway_url: %w", err))
		}
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate))
	}

	return errors.Join(errs...)
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Source.ChEMBLVersion == "" {
		cfg.Source.ChEMBLVersion = DefaultChEMBLVersion
	}
	if cfg.Source.MaxConns == 0 {
		cfg.Source.MaxConns = DefaultMaxConns
	}
	if cfg.Source.QueryTimeout == 0 {
		cfg.Source.QueryTimeout = Duration(DefaultQueryTimeout)
	}

	if cfg.Aggregation.MinEvidenceCount == 0 {
		cfg.Aggregation.MinEvidenceCount = DefaultMinEvidenceCount
	}

	if cfg.Subsets.MinCompoundsBF == 0 {
		cfg.Subsets.MinCompoundsBF = DefaultMinCompounds
	}
	if cfg.Subsets.MinCompoundsB == 0 {
		cfg.Subsets.MinCompoundsB = DefaultMinCompounds
	}

	if cfg.Output.Path == "" {
		cfg.Output.Path = DefaultOutputPath
	}
	if cfg.Output.Delimiter == "" {
		cfg.Output.Delimiter = DefaultDelimiter
	}

	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(DefaultCacheTTL)
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = DefaultMetricsJob
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
}
