package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/invariant"
	"github.com/fyrsmithlabs/dtiset/internal/logging"
	"github.com/fyrsmithlabs/dtiset/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type fakeMeasurements struct {
	rows []dataset.RawMeasurement
	err  error

	literatureOnly bool
}

func (f *fakeMeasurements) Measurements(_ context.Context, literatureOnly bool) ([]dataset.RawMeasurement, error) {
	f.literatureOnly = literatureOnly
	return f.rows, f.err
}

type fakeMechanisms struct {
	records   []dataset.MechanismRecord
	relations []dataset.TargetRelation
	err       error
}

func (f *fakeMechanisms) Mechanisms(context.Context) ([]dataset.MechanismRecord, error) {
	return f.records, f.err
}

func (f *fakeMechanisms) TargetRelations(context.Context) ([]dataset.TargetRelation, error) {
	return f.relations, nil
}

type fakeEnricher struct {
	ann *dataset.Annotations
	err error
	req dataset.AnnotationRequest
}

func (f *fakeEnricher) Enrich(_ context.Context, req dataset.AnnotationRequest) (*dataset.Annotations, error) {
	f.req = req
	return f.ann, f.err
}

func measurement(c, t string, pv float64, assay dataset.AssayType) dataset.RawMeasurement {
	return dataset.RawMeasurement{
		CompoundID:   c,
		TargetID:     t,
		Potency:      sql.Null[float64]{V: pv, Valid: true},
		EvidenceDate: sql.Null[time.Time]{V: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		Literature:   true,
		AssayType:    assay,
	}
}

func variantMeasurement(c, t, mutation, accession string) dataset.RawMeasurement {
	m := measurement(c, t, 6, dataset.AssayBinding)
	m.Variant = &dataset.Variant{Mutation: mutation, Accession: accession}
	return m
}

// fixture holds two measured pairs reached by mechanisms, one comparator,
// one conflicting key, a mechanism-only pair and an unmeasured phase 0
// mechanism that is not synthesized.
func fixture() Sources {
	return Sources{
		Measurements: &fakeMeasurements{rows: []dataset.RawMeasurement{
			measurement("1", "A", 6, dataset.AssayBinding),
			measurement("1", "A", 8, dataset.AssayFunctional),
			measurement("2", "A", 5, dataset.AssayBinding),
			measurement("3", "B", 7, dataset.AssayFunctional),
			variantMeasurement("5", "C", "V600E", "P1"),
			variantMeasurement("5", "C", "V600E", "P2"),
		}},
		Mechanisms: &fakeMechanisms{
			records: []dataset.MechanismRecord{
				{CompoundID: "1", TargetID: "F", MaxPhase: dataset.PhaseApproved, DiseaseRelevant: true},
				{CompoundID: "9", TargetID: "Z", MaxPhase: dataset.PhaseNone, DiseaseRelevant: true},
				{CompoundID: "7", TargetID: "Y", MaxPhase: dataset.PhaseNone},
				{CompoundID: "", TargetID: "Z", MaxPhase: dataset.Phase2},
			},
			relations: []dataset.TargetRelation{
				{TargetID: "F", RelatedID: "A", Kind: dataset.RelationFamily},
			},
		},
		Enricher: &fakeEnricher{ann: &dataset.Annotations{
			Descriptors: map[string]dataset.Descriptors{
				"1": {dataset.DescHeavyAtoms: 20, dataset.DescMWFreebase: 300, dataset.DescPSA: 70, dataset.DescALogP: 2},
			},
			Compounds: map[string]dataset.CompoundInfo{
				"1": {ChEMBLID: "CHEMBL25", PrefName: "ASPIRIN"},
			},
			Targets: map[string]dataset.TargetInfo{
				"A": {ChEMBLID: "CHEMBL204", TargetType: "SINGLE PROTEIN"},
			},
		}},
	}
}

func testConfig(t *testing.T, tt *telemetry.TestTelemetry, tl *logging.TestLogger) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RunID = "run-1"
	cfg.MinCompoundsBF = 1
	cfg.MinCompoundsB = 1
	cfg.Logger = tl.Logger
	cfg.Tracer = tt.Tracer("test")
	m, err := NewMetrics(tt.Meter("test"))
	require.NoError(t, err)
	cfg.Metrics = m
	return cfg
}

func rowByKey(rows []*dataset.CompoundTargetPair, c, t string) *dataset.CompoundTargetPair {
	for _, p := range rows {
		if p.Key.CompoundID == c && p.Key.TargetID == t && p.Key.Mutation == "" {
			return p
		}
	}
	return nil
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	tt := telemetry.NewTestTelemetry()
	tl := logging.NewTestLogger()
	src := fixture()

	res, err := Build(ctx, src, testConfig(t, tt, tl))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.True(t, src.Measurements.(*fakeMeasurements).literatureOnly)

	labels := map[string]dataset.Label{
		"1_A": dataset.LabelDrug,
		"1_F": dataset.LabelDrug,
		"2_A": dataset.LabelComparator,
		"3_B": dataset.LabelComparator,
		"9_Z": dataset.LabelPhase0,
	}
	require.Len(t, res.Rows, len(labels))
	for _, p := range res.Rows {
		assert.Equal(t, labels[p.Key.String()], p.Label, p.Key.String())
	}

	a := rowByKey(res.Rows, "1", "A")
	require.NotNil(t, a)
	assert.InDelta(t, 7.0, a.Evidence.V.Mean, 1e-9)
	assert.True(t, a.InMechanisms)
	assert.True(t, a.KeepForBinding)
	assert.True(t, a.Efficiency[dataset.ScopeEvidence].LE.Valid)
	assert.InDelta(t, 5.0, a.Efficiency[dataset.ScopeEvidence].LLE.V, 1e-9)

	z := rowByKey(res.Rows, "9", "Z")
	require.NotNil(t, z)
	assert.True(t, z.Backfilled)
	assert.False(t, z.HasPotency())
	assert.True(t, z.TherapeuticTarget)
	assert.Nil(t, rowByKey(res.Rows, "7", "Y"))

	require.NotNil(t, a.Compound)
	assert.Equal(t, "CHEMBL25", a.Compound.ChEMBLID)
	require.NotNil(t, a.Target)
	assert.Equal(t, "CHEMBL204", a.Target.ChEMBLID)
	assert.True(t, a.TherapeuticTarget)
	b3 := rowByKey(res.Rows, "3", "B")
	require.NotNil(t, b3)
	assert.False(t, b3.TherapeuticTarget)
	assert.Nil(t, b3.Target)

	req := src.Enricher.(*fakeEnricher).req
	assert.Equal(t, []string{"1", "2", "3", "9"}, req.CompoundIDs)
	assert.Equal(t, []string{"A", "B", "F", "Z"}, req.TargetIDs)
	assert.True(t, req.LiteratureOnly)

	rep := res.Report
	assert.Equal(t, "run-1", rep.RunID)
	assert.Empty(t, rep.Error)
	assert.Equal(t, 6, rep.Measurements)
	require.Len(t, rep.Conflicts, 1)
	assert.Equal(t, "5_C_V600E", rep.Conflicts[0].Key)
	assert.Equal(t, []string{"P1", "P2"}, rep.Conflicts[0].Accessions)
	require.Len(t, rep.SkippedMechanisms, 1)
	assert.Equal(t, 2, rep.SkippedMechanisms[0].Index)
	assert.Equal(t, 4, rep.ReferencePairs)
	assert.Equal(t, 4, rep.TherapeuticTargets)
	assert.Equal(t, 2, rep.Backfilled)
	assert.Equal(t, 5, rep.Pairs)
	assert.Equal(t, 2, rep.Labels[dataset.LabelDrug])
	assert.Equal(t, 1, rep.Enriched)
	assert.Equal(t, 1, rep.AnnotatedTargets)
	assert.Equal(t, 3, rep.AnnotatedRows)
	assert.Len(t, rep.Subsets, 6)
	assert.Equal(t, "BF_1", rep.Subsets[0].Column)
	assert.Equal(t, "B_1_d_dt", rep.Subsets[5].Column)
	assert.Len(t, res.Subsets, 2)
	assert.NotEmpty(t, res.Stats)
	assert.Equal(t, "aggregated", rep.Sizes[0].Step)
	assert.False(t, rep.FinishedAt.Before(rep.StartedAt))

	tt.AssertSpanExists(t, "pipeline.build")
	tt.AssertSpanAttribute(t, "pipeline.build", "run_id", "run-1")
	for _, stage := range []string{"measurements", "aggregate", "mechanisms", "resolve", "classify", "enrich", "efficiency", "subsets", "stats"} {
		tt.AssertSpanExists(t, "pipeline."+stage)
	}

	measured, ok := tt.Int64Sum(ctx, "dtiset.measurements.total")
	require.True(t, ok)
	assert.Equal(t, int64(6), measured)
	pairs, _ := tt.Int64Sum(ctx, "dtiset.pairs.total")
	assert.Equal(t, int64(5), pairs)
	conflicts, _ := tt.Int64Sum(ctx, "dtiset.conflicts.total")
	assert.Equal(t, int64(1), conflicts)
	backfilled, _ := tt.Int64Sum(ctx, "dtiset.pairs.backfilled.total")
	assert.Equal(t, int64(2), backfilled)
	assert.Equal(t, uint64(9), tt.HistogramCount(ctx, "dtiset.stage.duration.seconds"))

	tl.AssertLogged(t, zapcore.InfoLevel, "build complete")
	tl.AssertLogged(t, zapcore.WarnLevel, "conflicting variant metadata")
	tl.AssertField(t, "build complete", "run.id", "run-1")

	inv, err := Check(ctx, res, true)
	require.NoError(t, err)
	assert.True(t, inv.OK())
	assert.Equal(t, inv, *res.Report.Invariants)
}

func TestBuild_AllSources(t *testing.T) {
	src := fixture()
	nonLit := measurement("4", "B", 9, dataset.AssayBinding)
	nonLit.Literature = false
	m := src.Measurements.(*fakeMeasurements)
	m.rows = append(m.rows, nonLit)

	cfg := DefaultConfig()
	cfg.Aggregation.LiteratureOnly = false
	res, err := Build(context.Background(), src, cfg)
	require.NoError(t, err)

	assert.False(t, m.literatureOnly)
	assert.NotNil(t, rowByKey(res.Rows, "4", "B"))

	cfg.Aggregation.LiteratureOnly = true
	res, err = Build(context.Background(), src, cfg)
	require.NoError(t, err)
	assert.Nil(t, rowByKey(res.Rows, "4", "B"))
	assert.NotEmpty(t, res.Report.RunID)
}

func TestBuild_EnrichmentFailureDegrades(t *testing.T) {
	src := fixture()
	src.Enricher = &fakeEnricher{err: errors.New("descriptor service down")}
	tl := logging.NewTestLogger()
	cfg := DefaultConfig()
	cfg.Logger = tl.Logger

	res, err := Build(context.Background(), src, cfg)
	require.NoError(t, err)

	require.Len(t, res.Report.Warnings, 1)
	assert.Contains(t, res.Report.Warnings[0], "descriptor service down")
	a := rowByKey(res.Rows, "1", "A")
	require.NotNil(t, a)
	assert.False(t, a.Efficiency[dataset.ScopeEvidence].LE.Valid)
	tl.AssertLogged(t, zapcore.WarnLevel, "enrichment failed")
	tl.AssertStage(t, "enrich", "stage failed")

	_, err = Check(context.Background(), res, true)
	assert.NoError(t, err)
}

func TestBuild_NoEnricher(t *testing.T) {
	src := fixture()
	src.Enricher = nil

	res, err := Build(context.Background(), src, DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, res.Report.Enriched)
	assert.Len(t, res.Rows, 5)
}

func TestBuild_Errors(t *testing.T) {
	sourceErr := errors.New("connection refused")

	tests := []struct {
		name   string
		mutate func(*Sources)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing measurement source",
			mutate: func(s *Sources) { s.Measurements = nil },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMissingSource) },
		},
		{
			name:   "missing mechanism source",
			mutate: func(s *Sources) { s.Mechanisms = nil },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMissingSource) },
		},
		{
			name:   "measurement source failure",
			mutate: func(s *Sources) { s.Measurements = &fakeMeasurements{err: sourceErr} },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, sourceErr) },
		},
		{
			name:   "mechanism source failure",
			mutate: func(s *Sources) { s.Mechanisms = &fakeMechanisms{err: sourceErr} },
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, sourceErr) },
		},
		{
			name: "input shape",
			mutate: func(s *Sources) {
				s.Measurements = &fakeMeasurements{rows: []dataset.RawMeasurement{
					measurement("1", "A", 6, dataset.AssayBinding),
					measurement("2", "", 6, dataset.AssayBinding),
				}}
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, dataset.ErrInputShape)
				var shape *dataset.InputShapeError
				require.ErrorAs(t, err, &shape)
				assert.Equal(t, 1, shape.Row)
				assert.Equal(t, "target_id", shape.Field)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := fixture()
			tt.mutate(&src)

			res, err := Build(context.Background(), src, DefaultConfig())
			require.Error(t, err)
			tt.check(t, err)

			require.NotNil(t, res)
			require.NotNil(t, res.Report)
			assert.Nil(t, res.Rows)
			assert.Equal(t, err.Error(), res.Report.Error)

			_, err = Check(context.Background(), res, false)
			assert.ErrorIs(t, err, ErrNotBuilt)
		})
	}
}

func TestBuild_FailedStageSpan(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	src := fixture()
	src.Measurements = &fakeMeasurements{err: errors.New("timeout")}
	cfg := testConfig(t, tt, logging.NewTestLogger())

	_, err := Build(context.Background(), src, cfg)
	require.Error(t, err)

	span := tt.SpanByName("pipeline.measurements")
	require.NotNil(t, span)
	assert.Equal(t, "Error", span.Status().Code.String())
	assert.Nil(t, tt.SpanByName("pipeline.aggregate"))
	assert.Equal(t, uint64(1), tt.HistogramCount(context.Background(), "dtiset.stage.duration.seconds"))
}

func TestCheck_Violations(t *testing.T) {
	ctx := context.Background()
	tt := telemetry.NewTestTelemetry()
	tl := logging.NewTestLogger()

	res, err := Build(ctx, fixture(), testConfig(t, tt, tl))
	require.NoError(t, err)

	// Relabel a comparator as a drug behind the checker's back.
	p := rowByKey(res.Rows, "2", "A")
	require.NotNil(t, p)
	p.Label = dataset.LabelDrug

	rep, err := Check(ctx, res, false)
	require.NoError(t, err)
	assert.False(t, rep.OK())
	assert.Positive(t, rep.Count(invariant.KindLabelMismatch))
	require.NotNil(t, res.Report.Invariants)
	tl.AssertLogged(t, zapcore.WarnLevel, "dataset has invariant violations")

	violations, ok := tt.Int64Sum(ctx, "dtiset.violations.total")
	require.True(t, ok)
	assert.Equal(t, int64(len(rep.Violations)), violations)

	_, err = Check(ctx, res, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, invariant.ErrInvariantViolated)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.recordMeasurements(ctx, 1, true)
		m.recordConflicts(ctx, 1)
		m.recordBackfilled(ctx, 1)
		m.recordLabels(ctx, map[dataset.Label]int{dataset.LabelDrug: 1})
		m.recordViolations(ctx, invariant.Report{})
		m.recordStage(ctx, "aggregate", time.Second, nil)
	})

	m, err := NewMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, m)
}
