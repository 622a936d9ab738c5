package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "34", cfg.Source.ChEMBLVersion)
	assert.Equal(t, int32(4), cfg.Source.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Source.QueryTimeout.Duration())
	assert.True(t, cfg.Aggregation.LiteratureOnly())
	assert.Equal(t, 1, cfg.Aggregation.MinEvidenceCount)
	assert.Equal(t, 100, cfg.Subsets.MinCompoundsBF)
	assert.Equal(t, 100, cfg.Subsets.MinCompoundsB)
	assert.Equal(t, ";", cfg.Output.Delimiter)
	assert.False(t, cfg.Output.WriteBF)
	assert.False(t, cfg.Checks.Strict)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL.Duration())
	assert.Equal(t, "dtiset", cfg.Metrics.Job)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"all sources", func(c *Config) { c.Aggregation.AllSources = true }, ""},
		{"no version", func(c *Config) { c.Source.ChEMBLVersion = "" }, "source.chembl_version is required"},
		{"no conns", func(c *Config) { c.Source.MaxConns = 0 }, "source.max_conns must be positive"},
		{"no timeout", func(c *Config) { c.Source.QueryTimeout = 0 }, "source.query_timeout"},
		{"zero min evidence", func(c *Config) { c.Aggregation.MinEvidenceCount = 0 }, "min_evidence_count must be >= 1"},
		{"zero subset threshold", func(c *Config) { c.Subsets.MinCompoundsB = 0 }, "subsets thresholds"},
		{"long delimiter", func(c *Config) { c.Output.Delimiter = ";;" }, "single character"},
		{"tab delimiter", func(c *Config) { c.Output.Delimiter = "\t" }, ""},
		{"no output path", func(c *Config) { c.Output.Path = "" }, "output.path is required"},
		{"cache without url", func(c *Config) { c.Cache.Enabled = true }, "cache.redis_url is required"},
		{"cache with postgres url", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.RedisURL = "postgres://db/chembl_34"
		}, "redis or rediss scheme"},
		{"cache with url", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.RedisURL = "redis://localhost:6379/0"
		}, ""},
		{"cache zero ttl", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.RedisURL = "redis://localhost:6379/0"
			c.Cache.TTL = 0
		}, "cache.ttl must be positive"},
		{"bad pushgateway", func(c *Config) { c.Metrics.PushgatewayURL = "not a url" }, "metrics.pushgateway_url"},
		{"pushgateway", func(c *Config) { c.Metrics.PushgatewayURL = "http://pushgateway:9091" }, ""},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "telemetry.sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Source.MaxConns = 0
	cfg.Output.Path = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source.max_conns")
	assert.Contains(t, err.Error(), "output.path")
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("postgres://chembl:pw@db/chembl_34")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "Secret([REDACTED])", s.GoString())
	assert.True(t, s.IsSet())
	assert.Equal(t, "postgres://chembl:pw@db/chembl_34", s.Value())

	b, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(b))

	b, err = s.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "[REDACTED]", string(b))
	assert.Equal(t, "postgres", s.Scheme())

	assert.Empty(t, Secret("").String())
	assert.False(t, Secret("").IsSet())
	assert.Empty(t, Secret("host=db user=chembl").Scheme())
}

func TestSecret_DecodesVerbatim(t *testing.T) {
	var got struct {
		DSN Secret `json:"dsn"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"dsn":"[REDACTED]"}`), &got))
	assert.Equal(t, "[REDACTED]", got.DSN.Value())

	require.NoError(t, json.Unmarshal([]byte(`{"dsn":"redis://:pw@cache:6379/0"}`), &got))
	assert.Equal(t, "redis://:pw@cache:6379/0", got.DSN.Value())
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	b, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(b))

	assert.Error(t, d.UnmarshalText([]byte("-1s")))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
