package pipeline

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/invariant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/dtiset/internal/pipeline"

// Metrics provides OpenTelemetry metrics for build runs.
type Metrics struct {
	measurementsTotal metric.Int64Counter
	pairsTotal        metric.Int64Counter
	backfilledTotal   metric.Int64Counter
	conflictsTotal    metric.Int64Counter
	violationsTotal   metric.Int64Counter

	stageDuration metric.Float64Histogram

	initialized bool
}

// NewMetrics creates the build metrics on meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.measurementsTotal, err = meter.Int64Counter(
		"dtiset.measurements.total",
		metric.WithDescription("Activity rows read from the measurement source"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	m.pairsTotal, err = meter.Int64Counter(
		"dtiset.pairs.total",
		metric.WithDescription("Labeled compound-target pairs"),
		metric.WithUnit("{pair}"),
	)
	if err != nil {
		return nil, err
	}

	m.backfilledTotal, err = meter.Int64Counter(
		"dtiset.pairs.backfilled.total",
		metric.WithDescription("Pairs inserted from mechanism data without measurements"),
		metric.WithUnit("{pair}"),
	)
	if err != nil {
		return nil, err
	}

	m.conflictsTotal, err = meter.Int64Counter(
		"dtiset.conflicts.total",
		metric.WithDescription("Keys excluded for conflicting variant metadata"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}

	m.violationsTotal, err = meter.Int64Counter(
		"dtiset.violations.total",
		metric.WithDescription("Invariant violations found by the checker"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, err
	}

	m.stageDuration, err = meter.Float64Histogram(
		"dtiset.stage.duration.seconds",
		metric.WithDescription("Duration of a build stage in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

func (m *Metrics) recordMeasurements(ctx context.Context, n int, literatureOnly bool) {
	if m == nil || !m.initialized {
		return
	}
	m.measurementsTotal.Add(ctx, int64(n), metric.WithAttributes(
		attribute.Bool("literature_only", literatureOnly),
	))
}

func (m *Metrics) recordConflicts(ctx context.Context, n int) {
	if m == nil || !m.initialized || n == 0 {
		return
	}
	m.conflictsTotal.Add(ctx, int64(n))
}

func (m *Metrics) recordBackfilled(ctx context.Context, n int) {
	if m == nil || !m.initialized || n == 0 {
		return
	}
	m.backfilledTotal.Add(ctx, int64(n))
}

// recordLabels adds one data point per label, zero counts included.
func (m *Metrics) recordLabels(ctx context.Context, counts map[dataset.Label]int) {
	if m == nil || !m.initialized {
		return
	}
	for _, l := range dataset.Labels {
		m.pairsTotal.Add(ctx, int64(counts[l]), metric.WithAttributes(
			attribute.String("label", string(l)),
		))
	}
}

func (m *Metrics) recordViolations(ctx context.Context, rep invariant.Report) {
	if m == nil || !m.initialized {
		return
	}
	for _, k := range invariant.Kinds {
		if n := rep.Count(k); n > 0 {
			m.violationsTotal.Add(ctx, int64(n), metric.WithAttributes(
				attribute.String("invariant", string(k)),
			))
		}
	}
}

func (m *Metrics) recordStage(ctx context.Context, stage string, d time.Duration, err error) {
	if m == nil || !m.initialized {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}
