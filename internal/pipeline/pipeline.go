package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/aggregate"
	"github.com/fyrsmithlabs/dtiset/internal/classify"
	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/efficiency"
	"github.com/fyrsmithlabs/dtiset/internal/invariant"
	"github.com/fyrsmithlabs/dtiset/internal/logging"
	"github.com/fyrsmithlabs/dtiset/internal/mechanism"
	"github.com/fyrsmithlabs/dtiset/internal/stats"
	"github.com/fyrsmithlabs/dtiset/internal/subset"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config controls a build run.
type Config struct {
	// RunID correlates logs, spans and the report. Generated when empty.
	RunID       string
	Aggregation aggregate.Config

	MinCompoundsBF int
	MinCompoundsB  int

	// Tolerance bounds float comparisons in Check. Zero means the checker
	// default.
	Tolerance float64

	// Logger defaults to the logger stored in the build context.
	Logger *logging.Logger
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
	// Metrics may be nil.
	Metrics *Metrics
}

// DefaultConfig returns the settings of a literature-only run.
func DefaultConfig() Config {
	agg := aggregate.DefaultConfig()
	agg.LiteratureOnly = true
	return Config{
		Aggregation:    agg,
		MinCompoundsBF: subset.DefaultMinCompounds,
		MinCompoundsB:  subset.DefaultMinCompounds,
	}
}

// Result is the output of Build.
type Result struct {
	// Rows is the labeled dataset ordered by key.
	Rows      []*dataset.CompoundTargetPair
	Reference *mechanism.ReferenceSet
	Subsets   []subset.Result
	Stats     []stats.Stat
	Report    *Report

	logger    *logging.Logger
	metrics   *Metrics
	tolerance float64
}

// Conflict is a key excluded for conflicting variant metadata.
type Conflict struct {
	Key        string   `json:"key"`
	Accessions []string `json:"accessions"`
	Rows       int      `json:"rows"`
}

// SkippedMechanism is a mechanism record left out of the reference set.
type SkippedMechanism struct {
	Index      int    `json:"index"`
	CompoundID string `json:"compound_id"`
	TargetID   string `json:"target_id"`
	Reason     string `json:"reason"`
}

// SubsetSummary describes one subset column.
type SubsetSummary struct {
	Column  string `json:"column"`
	Targets int    `json:"targets"`
	Rows    int    `json:"rows"`
}

// Report is the structured account of a run. It is filled in as stages
// complete, so a failed run reports everything up to the failing stage.
type Report struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	LiteratureOnly bool      `json:"literature_only"`
	Error          string    `json:"error,omitempty"`

	Measurements int        `json:"measurements"`
	Contributing int        `json:"contributing"`
	DroppedPairs int        `json:"dropped_pairs"`
	Conflicts    []Conflict `json:"conflicts"`

	MechanismRecords   int                `json:"mechanism_records"`
	TargetRelations    int                `json:"target_relations"`
	SkippedMechanisms  []SkippedMechanism `json:"skipped_mechanisms"`
	ReferencePairs     int                `json:"reference_pairs"`
	TherapeuticTargets int                `json:"therapeutic_targets"`
	Backfilled         int                `json:"backfilled"`

	Pairs    int                   `json:"pairs"`
	Labels   map[dataset.Label]int `json:"labels"`
	Enriched int                   `json:"enriched_compounds"`
	Warnings []string              `json:"warnings,omitempty"`

	AnnotatedTargets int `json:"annotated_targets"`
	AnnotatedRows    int `json:"annotated_rows"`

	Subsets []SubsetSummary `json:"subsets"`
	Sizes   []stats.Size    `json:"sizes"`

	Invariants *invariant.Report `json:"invariants,omitempty"`
}

type builder struct {
	cfg     Config
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
	report  *Report
}

// Build runs every stage over the sources. The returned Result is never nil;
// on error it carries the partial Report and no rows.
func Build(ctx context.Context, src Sources, cfg Config) (*Result, error) {
	if cfg.RunID == "" {
		cfg.RunID = logging.NewRunID()
	}
	if cfg.MinCompoundsBF < 1 {
		cfg.MinCompoundsBF = subset.DefaultMinCompounds
	}
	if cfg.MinCompoundsB < 1 {
		cfg.MinCompoundsB = subset.DefaultMinCompounds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}

	b := &builder{
		cfg:     cfg,
		logger:  logger.Named("pipeline"),
		tracer:  tracer,
		metrics: cfg.Metrics,
		report: &Report{
			RunID:          cfg.RunID,
			StartedAt:      time.Now().UTC(),
			LiteratureOnly: cfg.Aggregation.LiteratureOnly,
			Labels:         make(map[dataset.Label]int, len(dataset.Labels)),
		},
	}
	res := &Result{
		Report:    b.report,
		logger:    b.logger,
		metrics:   b.metrics,
		tolerance: cfg.Tolerance,
	}

	ctx = logging.WithRunID(ctx, cfg.RunID)
	ctx, span := tracer.Start(ctx, "pipeline.build", trace.WithAttributes(
		attribute.String("run_id", cfg.RunID),
		attribute.Bool("literature_only", cfg.Aggregation.LiteratureOnly),
	))
	defer span.End()

	err := b.run(ctx, src, res)
	b.report.FinishedAt = time.Now().UTC()
	if err != nil {
		b.report.Error = err.Error()
		res.Rows = nil
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Error(ctx, "build failed", zap.Error(err))
		return res, err
	}

	span.SetAttributes(attribute.Int("pairs", len(res.Rows)))
	b.logger.Info(ctx, "build complete",
		zap.Int("pairs", len(res.Rows)),
		zap.Int("conflicts", len(b.report.Conflicts)),
		zap.Int("backfilled", b.report.Backfilled),
		zap.Duration("duration", b.report.FinishedAt.Sub(b.report.StartedAt)),
	)
	return res, nil
}

func (b *builder) run(ctx context.Context, src Sources, res *Result) error {
	if src.Measurements == nil {
		return fmt.Errorf("%w: measurements", ErrMissingSource)
	}
	if src.Mechanisms == nil {
		return fmt.Errorf("%w: mechanisms", ErrMissingSource)
	}
	rep := b.report
	zl := b.logger.ForRun(b.cfg.RunID)

	var rows []dataset.RawMeasurement
	err := b.stage(ctx, "measurements", func(ctx context.Context) error {
		var err error
		rows, err = src.Measurements.Measurements(ctx, b.cfg.Aggregation.LiteratureOnly)
		if err != nil {
			return fmt.Errorf("reading measurements: %w", err)
		}
		rep.Measurements = len(rows)
		b.metrics.recordMeasurements(ctx, len(rows), b.cfg.Aggregation.LiteratureOnly)
		return nil
	})
	if err != nil {
		return err
	}

	var table *aggregate.Table
	err = b.stage(ctx, "aggregate", func(ctx context.Context) error {
		t, ar, err := aggregate.New(b.cfg.Aggregation, zl).Aggregate(rows)
		if err != nil {
			return fmt.Errorf("aggregating measurements: %w", err)
		}
		table = t
		rep.Contributing = ar.Contributing
		rep.DroppedPairs = ar.Dropped
		rep.Conflicts = make([]Conflict, 0, len(ar.Conflicts))
		for _, c := range ar.Conflicts {
			rep.Conflicts = append(rep.Conflicts, Conflict{Key: c.Key.String(), Accessions: c.Accessions, Rows: c.Rows})
		}
		b.metrics.recordConflicts(ctx, len(ar.Conflicts))
		rep.Sizes = append(rep.Sizes, stats.Sizes("aggregated", table.Rows()))
		return nil
	})
	if err != nil {
		return err
	}

	var (
		records   []dataset.MechanismRecord
		relations []dataset.TargetRelation
	)
	err = b.stage(ctx, "mechanisms", func(ctx context.Context) error {
		var err error
		if records, err = src.Mechanisms.Mechanisms(ctx); err != nil {
			return fmt.Errorf("reading mechanisms: %w", err)
		}
		if relations, err = src.Mechanisms.TargetRelations(ctx); err != nil {
			return fmt.Errorf("reading target relations: %w", err)
		}
		rep.MechanismRecords = len(records)
		rep.TargetRelations = len(relations)
		return nil
	})
	if err != nil {
		return err
	}

	_ = b.stage(ctx, "resolve", func(ctx context.Context) error {
		ref, skipped := mechanism.NewResolver(relations, zl).Resolve(records)
		res.Reference = ref
		rep.ReferencePairs = ref.Len()
		rep.TherapeuticTargets = ref.TargetCount()
		rep.SkippedMechanisms = make([]SkippedMechanism, 0, len(skipped))
		for _, s := range skipped {
			rep.SkippedMechanisms = append(rep.SkippedMechanisms, SkippedMechanism{
				Index:      s.Index,
				CompoundID: s.Record.CompoundID,
				TargetID:   s.Record.TargetID,
				Reason:     s.Reason,
			})
		}

		rep.Backfilled = table.Backfill(classify.BackfillPairs(ref))
		b.metrics.recordBackfilled(ctx, rep.Backfilled)
		rep.Sizes = append(rep.Sizes, stats.Sizes("mechanisms added", table.Rows()))
		return nil
	})

	_ = b.stage(ctx, "classify", func(ctx context.Context) error {
		counts := classify.New(res.Reference, zl).Classify(table)
		for l, n := range counts {
			rep.Labels[l] = n
		}
		res.Rows = table.Rows()
		rep.Pairs = len(res.Rows)
		b.metrics.recordLabels(ctx, counts)
		rep.Sizes = append(rep.Sizes, stats.Sizes("classified", res.Rows))
		return nil
	})

	if src.Enricher != nil {
		_ = b.stage(ctx, "enrich", func(ctx context.Context) error {
			ann, err := src.Enricher.Enrich(ctx, dataset.AnnotationRequest{
				CompoundIDs:    table.CompoundIDs(),
				TargetIDs:      table.TargetIDs(),
				LiteratureOnly: b.cfg.Aggregation.LiteratureOnly,
			})
			if err != nil {
				// Annotations are optional; efficiency metrics stay null.
				msg := fmt.Sprintf("enrichment skipped: %v", err)
				rep.Warnings = append(rep.Warnings, msg)
				b.logger.Warn(ctx, "enrichment failed, annotations left empty", zap.Error(err))
				return err
			}
			rep.AnnotatedRows = ann.Apply(res.Rows)
			rep.Enriched = len(ann.Descriptors)
			rep.AnnotatedTargets = len(ann.Targets)
			return nil
		})
	}

	_ = b.stage(ctx, "efficiency", func(ctx context.Context) error {
		efficiency.Apply(res.Rows, dataset.ScopeEvidence, dataset.ScopeBinding)
		return nil
	})

	_ = b.stage(ctx, "subsets", func(ctx context.Context) error {
		thresholds := []struct {
			scope dataset.Scope
			min   int
		}{
			{dataset.ScopeEvidence, b.cfg.MinCompoundsBF},
			{dataset.ScopeBinding, b.cfg.MinCompoundsB},
		}
		for _, th := range thresholds {
			sr := subset.Annotate(res.Rows, th.scope, th.min)
			res.Subsets = append(res.Subsets, sr)
			targets := [][]string{sr.Targets, sr.KnownTargets, sr.DrugTargets}
			for i, col := range sr.Columns {
				selected := subset.Select(res.Rows, col)
				rep.Subsets = append(rep.Subsets, SubsetSummary{Column: col, Targets: len(targets[i]), Rows: len(selected)})
				rep.Sizes = append(rep.Sizes, stats.Sizes(col, selected))
			}
		}
		return nil
	})

	_ = b.stage(ctx, "stats", func(ctx context.Context) error {
		res.Stats = stats.Compute(res.Rows)
		return nil
	})

	return nil
}

// stage runs fn in its own span with the stage recorded in the context.
func (b *builder) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := b.tracer.Start(ctx, "pipeline."+name, trace.WithAttributes(
		attribute.String("run_id", b.cfg.RunID),
	))
	defer span.End()
	ctx = logging.WithStage(ctx, name)

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	b.metrics.recordStage(ctx, name, elapsed, err)
	b.logger.StageDone(ctx, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// Check validates the rows of res against the dataset invariants and stores
// the outcome in res.Report. In strict mode any violation is returned as an
// error wrapping invariant.ErrInvariantViolated.
func Check(ctx context.Context, res *Result, strict bool) (invariant.Report, error) {
	if res == nil || res.Reference == nil || res.Rows == nil {
		return invariant.Report{}, ErrNotBuilt
	}
	logger := res.logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	checker := invariant.NewChecker(res.Reference, invariant.Options{
		Logger:    logger.Underlying(),
		Tolerance: res.tolerance,
	})
	rep := checker.Check(res.Rows)
	if res.Report != nil {
		res.Report.Invariants = &rep
	}
	res.metrics.recordViolations(ctx, rep)

	if err := rep.Err(); err != nil {
		if strict {
			return rep, err
		}
		logger.Warn(ctx, "dataset has invariant violations", zap.Int("violations", len(rep.Violations)))
	}
	return rep, nil
}
