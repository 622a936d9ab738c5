// Package telemetry sets up OpenTelemetry tracing and metrics for dtiset
// build runs.
//
// Export goes to an OTLP collector over gRPC or HTTP/protobuf. Telemetry is
// disabled by default; a disabled or degraded instance hands out the global
// no-op providers so callers never branch on it. Every exported span and
// metric carries the build's run id as dtiset.run.id.
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("dtiset.pipeline")
//	ctx, span := tracer.Start(ctx, "pipeline.aggregate")
//	defer span.End()
//
// Configuration:
//
//	telemetry:
//	  enabled: true
//	  endpoint: "localhost:4317"
//	  protocol: grpc
//	  sampling:
//	    rate: 1.0
//	  metrics:
//	    enabled: true
//	    export_interval: "15s"
//
// Tests use NewTestTelemetry, which records spans and metrics in memory.
package telemetry
