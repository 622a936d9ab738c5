// Package logging provides structured logging for dtiset build runs.
//
// The package wraps Zap with:
//   - a Trace level (-2, below Debug) for per-row diagnostics
//   - stderr JSON output plus an optional OpenTelemetry bridge
//   - run correlation fields (trace_id, run.id, run.stage) taken from context
//   - redaction of connection strings and credentials
//   - per-level sampling (errors are never sampled)
//
// # Usage
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, logging.NewRunID())
//	ctx = logging.WithStage(ctx, "aggregate")
//	logger.Info(ctx, "pairs aggregated", zap.Int("pairs", n))
//
// Pipeline packages take a plain *zap.Logger; pass Logger.Underlying().
//
// # Secret Redaction
//
// The source DSN is a config.Secret and never logged verbatim. Use Endpoint
// to log a connection URL with its password masked, and RedactedString for
// values whose length is the only safe detail. The encoder additionally
// redacts configured field names and patterns.
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "message")
//	tl.AssertNoSecrets(t)
package logging
