package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/config"
	"github.com/fyrsmithlabs/dtiset/internal/logging"
	"github.com/fyrsmithlabs/dtiset/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// observability holds the logger and telemetry of one command run.
type observability struct {
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
}

// initObservability starts telemetry tagged with runID and the logger that
// bridges into it.
func initObservability(ctx context.Context, cfg *config.Config, runID string, debug bool) (*observability, error) {
	tel, err := telemetry.New(ctx, telemetryConfig(cfg, runID))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	lcfg, err := loggingConfig(cfg, debug)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	logger, err := logging.NewLogger(lcfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	for _, reason := range tel.Degraded() {
		logger.Warn(ctx, "telemetry exporter disabled", zap.String("reason", reason))
	}
	return &observability{logger: logger, telemetry: tel}, nil
}

// Close flushes logs and telemetry. It uses its own deadline so a cancelled
// run still exports what it recorded.
func (o *observability) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = o.logger.Sync()
	_ = o.telemetry.Shutdown(ctx)
}

// loggingConfig maps the file's logging section onto the logger config.
func loggingConfig(cfg *config.Config, debug bool) (*logging.Config, error) {
	lcfg := logging.NewDefaultConfig()

	level, err := logging.LevelFromString(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}
	if debug && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}
	lcfg.Level = level
	lcfg.Format = cfg.Logging.Format
	lcfg.Output.OTEL = cfg.Telemetry.Enabled
	if debug {
		lcfg.Sampling.Enabled = false
		lcfg.Caller.Enabled = true
	}
	return lcfg, nil
}

// telemetryConfig maps the file's telemetry section onto the OTEL config.
func telemetryConfig(cfg *config.Config, runID string) *telemetry.Config {
	tcfg := telemetry.NewDefaultConfig()
	tcfg.RunID = runID
	tcfg.Enabled = cfg.Telemetry.Enabled
	tcfg.Endpoint = cfg.Telemetry.Endpoint
	tcfg.Protocol = cfg.Telemetry.Protocol
	tcfg.Insecure = cfg.Telemetry.Insecure
	tcfg.Sampling.Rate = cfg.Telemetry.SampleRate
	tcfg.ServiceVersion = version
	return tcfg
}
