package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampledLogger(levels map[zapcore.Level]LevelSamplingConfig) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels:  levels,
	})
	return &Logger{zap: zap.New(sampled), config: NewDefaultConfig()}, observed
}

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.Equal(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestNewSampledCore_PerLevel(t *testing.T) {
	logger, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.DebugLevel: {Initial: 2, Thereafter: 0},
		zapcore.InfoLevel:  {Initial: 5, Thereafter: 5},
	})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		logger.Debug(ctx, "debug message")
		logger.Info(ctx, "info message")
		logger.Warn(ctx, "warn message")
		logger.Error(ctx, "error message")
	}

	assert.Len(t, observed.FilterMessage("debug message").All(), 2)
	// 5 initial, then every 5th of the remaining 15.
	assert.Len(t, observed.FilterMessage("info message").All(), 8)
	assert.Len(t, observed.FilterMessage("warn message").All(), 20, "unconfigured levels pass through")
	assert.Len(t, observed.FilterMessage("error message").All(), 20, "errors are never sampled")
}

func TestNewSampledCore_DefaultsKeepErrors(t *testing.T) {
	logger, observed := sampledLogger(DefaultLevelSamplingConfig())
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		logger.Info(ctx, "repeated")
		logger.Error(ctx, "failure")
	}

	assert.Less(t, len(observed.FilterMessage("repeated").All()), 500)
	assert.Len(t, observed.FilterMessage("failure").All(), 500)
}

func TestLevelFilterCore_With(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	filtered := &levelFilterCore{
		Core:  core,
		match: func(l zapcore.Level) bool { return l >= zapcore.ErrorLevel },
	}
	logger := &Logger{zap: zap.New(filtered), config: NewDefaultConfig()}

	child := logger.With(zap.String("component", "test"))
	child.Info(context.Background(), "info message")
	child.Warn(context.Background(), "warn message")
	child.Error(context.Background(), "error message")

	logs := observed.All()
	require.Len(t, logs, 1)
	assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	assert.Equal(t, "test", logs[0].ContextMap()["component"])
}
