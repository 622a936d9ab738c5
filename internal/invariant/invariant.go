// Package invariant re-derives facts about a labeled dataset and reports
// every row that contradicts them.
//
// The checker never fails by itself: violations are returned as data and the
// caller decides. Report.Err converts a non-empty report into
// ErrInvariantViolated for strict runs.
package invariant

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/efficiency"
	"github.com/fyrsmithlabs/dtiset/internal/mechanism"
	"go.uber.org/zap"
)

// ErrInvariantViolated is returned by Report.Err when violations exist.
var ErrInvariantViolated = errors.New("dataset invariants violated")

// Kind names a checked invariant.
type Kind string

const (
	KindPhaseBand         Kind = "phase_band"
	KindOrphanPotencyless Kind = "orphan_potencyless"
	KindDuplicateKey      Kind = "duplicate_key"
	KindFractionalResidue Kind = "fractional_residue"
	KindLabelMismatch     Kind = "label_mismatch"
	KindStatistics        Kind = "statistics"
	KindEfficiency        Kind = "efficiency"
)

// Kinds lists every invariant in reporting order.
var Kinds = []Kind{
	KindPhaseBand,
	KindOrphanPotencyless,
	KindDuplicateKey,
	KindFractionalResidue,
	KindLabelMismatch,
	KindStatistics,
	KindEfficiency,
}

// Violation is one failed invariant on one row.
type Violation struct {
	Invariant Kind            `json:"invariant"`
	Key       dataset.PairKey `json:"-"`
	Row       string          `json:"key"`
	Detail    string          `json:"detail"`
}

// Report is the outcome of a check.
type Report struct {
	Rows       int         `json:"rows"`
	Violations []Violation `json:"violations"`
}

// OK reports whether no invariant was violated.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// Count returns the number of violations of kind.
func (r Report) Count(kind Kind) int {
	n := 0
	for _, v := range r.Violations {
		if v.Invariant == kind {
			n++
		}
	}
	return n
}

// Err returns nil for a clean report and an error wrapping
// ErrInvariantViolated otherwise.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return fmt.Errorf("%w: %d violations in %d rows", ErrInvariantViolated, len(r.Violations), r.Rows)
}

// Options configures a Checker.
type Options struct {
	Logger *zap.Logger
	// Tolerance bounds float comparisons. Zero means 1e-9.
	Tolerance float64
}

// Checker validates labeled rows against a reference set.
type Checker struct {
	ref    *mechanism.ReferenceSet
	tol    float64
	logger *zap.Logger
}

// NewChecker creates a Checker.
func NewChecker(ref *mechanism.ReferenceSet, opts Options) *Checker {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = 1e-9
	}
	return &Checker{ref: ref, tol: tol, logger: logger.Named("invariant")}
}

// Check evaluates every invariant on rows.
func (c *Checker) Check(rows []*dataset.CompoundTargetPair) Report {
	rep := Report{Rows: len(rows)}
	seen := make(map[dataset.PairKey]dataset.Label, len(rows))

	add := func(kind Kind, key dataset.PairKey, format string, args ...any) {
		rep.Violations = append(rep.Violations, Violation{
			Invariant: kind,
			Key:       key,
			Row:       key.String(),
			Detail:    fmt.Sprintf(format, args...),
		})
	}

	for _, p := range rows {
		key := p.Key
		id := key.Pair()

		if prev, dup := seen[key]; dup {
			add(KindDuplicateKey, key, "labels %s and %s", prev, p.Label)
		} else {
			seen[key] = p.Label
		}

		c.checkPhase(p, add)

		if !p.HasPotency() && !c.ref.Contains(id) {
			add(KindOrphanPotencyless, key, "no potency and not a known mechanism pair")
		}

		for _, col := range dataset.IntegralDescriptors {
			if v, ok := p.Descriptors.Get(col); ok && v != math.Trunc(v) {
				add(KindFractionalResidue, key, "%s=%v", col, v)
			}
		}

		if want := c.expectedLabel(id, p.HasPotency()); want != p.Label {
			add(KindLabelMismatch, key, "label %s, expected %s", p.Label, want)
		}

		c.checkStatistics(p, add)
		c.checkEfficiency(p, add)
	}

	sort.SliceStable(rep.Violations, func(i, j int) bool {
		a, b := rep.Violations[i], rep.Violations[j]
		if a.Invariant != b.Invariant {
			return kindIndex(a.Invariant) < kindIndex(b.Invariant)
		}
		return a.Key.Less(b.Key)
	})

	if !rep.OK() {
		fields := []zap.Field{zap.Int("rows", rep.Rows)}
		for _, k := range Kinds {
			if n := rep.Count(k); n > 0 {
				fields = append(fields, zap.Int(string(k), n))
			}
		}
		c.logger.Warn("invariant violations", fields...)
	}
	return rep
}

type addFunc func(kind Kind, key dataset.PairKey, format string, args ...any)

// phaseBands maps each clinical label to the phases it may carry.
var phaseBands = map[dataset.Label][]dataset.Phase{
	dataset.LabelDrug:   {dataset.PhaseApproved},
	dataset.LabelPhase3: {dataset.Phase3},
	dataset.LabelPhase2: {dataset.Phase2},
	dataset.LabelPhase1: {dataset.Phase1, dataset.PhaseEarly},
}

func (c *Checker) checkPhase(p *dataset.CompoundTargetPair, add addFunc) {
	if ref := c.ref.MaxPhase(p.Key.Pair()); p.MaxPhase != ref {
		add(KindPhaseBand, p.Key, "recorded phase %v, reference phase %v", p.MaxPhase, ref)
	}

	band, clinical := phaseBands[p.Label]
	if !clinical {
		if p.MaxPhase != dataset.PhaseNone {
			add(KindPhaseBand, p.Key, "label %s with phase %v", p.Label, p.MaxPhase)
		}
		return
	}
	for _, ph := range band {
		if p.MaxPhase == ph {
			return
		}
	}
	add(KindPhaseBand, p.Key, "label %s with phase %v", p.Label, p.MaxPhase)
}

// expectedLabel evaluates the labeling rules from the reference set alone.
func (c *Checker) expectedLabel(id dataset.PairID, hasPotency bool) dataset.Label {
	phase := c.ref.MaxPhase(id)
	for label, band := range phaseBands {
		for _, ph := range band {
			if phase == ph {
				return label
			}
		}
	}
	switch {
	case c.ref.DiseaseRelevant(id):
		return dataset.LabelPhase0
	case hasPotency:
		return dataset.LabelComparator
	default:
		return dataset.LabelNone
	}
}

func (c *Checker) checkStatistics(p *dataset.CompoundTargetPair, add addFunc) {
	for _, scope := range []dataset.Scope{dataset.ScopeEvidence, dataset.ScopeBinding, dataset.ScopeLiterature} {
		s := p.Summary(scope)
		if !s.Valid {
			continue
		}
		v := s.V
		if v.Count < 1 {
			add(KindStatistics, p.Key, "%s count %d", scope, v.Count)
		}
		if v.Mean > v.Max+c.tol {
			add(KindStatistics, p.Key, "%s mean %v exceeds max %v", scope, v.Mean, v.Max)
		}
		if v.Median > v.Max+c.tol {
			add(KindStatistics, p.Key, "%s median %v exceeds max %v", scope, v.Median, v.Max)
		}
		if v.FirstEvidence.Valid && v.FirstPotencyEvidence.Valid && v.FirstPotencyEvidence.V.Before(v.FirstEvidence.V) {
			add(KindStatistics, p.Key, "%s first potency evidence precedes first evidence", scope)
		}
	}

	if p.Evidence.Valid {
		for _, scope := range []dataset.Scope{dataset.ScopeBinding, dataset.ScopeLiterature} {
			if s := p.Summary(scope); s.Valid && s.V.Count > p.Evidence.V.Count {
				add(KindStatistics, p.Key, "%s count %d exceeds evidence count %d", scope, s.V.Count, p.Evidence.V.Count)
			}
		}
	} else if p.Binding.Valid || p.Literature.Valid {
		add(KindStatistics, p.Key, "scoped summary without evidence summary")
	}
}

func (c *Checker) checkEfficiency(p *dataset.CompoundTargetPair, add addFunc) {
	scopes := make([]dataset.Scope, 0, len(p.Efficiency))
	for s := range p.Efficiency {
		scopes = append(scopes, s)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i] < scopes[j] })

	for _, scope := range scopes {
		got := p.Efficiency[scope]
		want := efficiency.Compute(efficiency.Mean(p, scope), p.Descriptors)
		for _, m := range []struct {
			name      string
			got, want sql.Null[float64]
		}{
			{"le", got.LE, want.LE},
			{"bei", got.BEI, want.BEI},
			{"sei", got.SEI, want.SEI},
			{"lle", got.LLE, want.LLE},
		} {
			if m.got.Valid != m.want.Valid {
				add(KindEfficiency, p.Key, "%s %s defined=%t, inputs imply %t", scope, m.name, m.got.Valid, m.want.Valid)
				continue
			}
			if m.got.Valid && math.Abs(m.got.V-m.want.V) > c.tol {
				add(KindEfficiency, p.Key, "%s %s=%v, expected %v", scope, m.name, m.got.V, m.want.V)
			}
		}
	}
}

func kindIndex(k Kind) int {
	for i, known := range Kinds {
		if k == known {
			return i
		}
	}
	return len(Kinds)
}
