package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()

	res, err := newResource(cfg)
	require.NoError(t, err)

	found := false
	for _, attr := range res.Attributes() {
		if string(attr.Key) == "service.name" {
			assert.Equal(t, "dtiset", attr.Value.AsString())
			found = true
		}
	}
	assert.True(t, found, "service.name attribute not found")

	_, ok := res.Set().Value(runIDKey)
	assert.False(t, ok)
}

func TestNewResource_RunID(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.RunID = "run-42"

	res, err := newResource(cfg)
	require.NoError(t, err)

	v, ok := res.Set().Value(runIDKey)
	require.True(t, ok)
	assert.Equal(t, "run-42", v.AsString())
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}

func TestNewMeterProvider_MetricsDisabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Metrics.Enabled = false

	res, err := newResource(cfg)
	require.NoError(t, err)

	mp, err := newMeterProvider(context.Background(), cfg, res)
	require.NoError(t, err)
	assert.Nil(t, mp)
}
