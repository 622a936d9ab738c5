// Package subset flags dataset rows belonging to well-populated targets.
//
// For a scope and a minimum compound count N three nested subsets are
// derived over variant-aware targets:
//
//	<scope>_<N>            targets with at least N compounds with a potency
//	<scope>_<N>_c_dt_d_dt  of those, targets with a known interaction
//	<scope>_<N>_d_dt       of those, targets with an approved drug
package subset

import (
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

// DefaultMinCompounds is the default compound threshold per target.
const DefaultMinCompounds = 100

// Columns returns the flag names for scope and n, outermost subset first.
func Columns(scope dataset.Scope, n int) []string {
	base := fmt.Sprintf("%s_%d", scope, n)
	return []string{base, base + "_c_dt_d_dt", base + "_d_dt"}
}

// Result describes the subsets derived for one scope.
type Result struct {
	Scope        dataset.Scope
	MinCompounds int
	Columns      []string

	// Targets, KnownTargets and DrugTargets are sorted variant-aware
	// target keys of the three nested subsets.
	Targets      []string
	KnownTargets []string
	DrugTargets  []string
}

// InScope reports whether p takes part in subsets of scope. Binding subsets
// only consider rows kept for binding.
func InScope(p *dataset.CompoundTargetPair, scope dataset.Scope) bool {
	if scope == dataset.ScopeBinding {
		return p.KeepForBinding
	}
	return true
}

// Annotate computes the subsets of scope and sets the corresponding flags on
// every row. Rows outside the scope get false flags.
func Annotate(rows []*dataset.CompoundTargetPair, scope dataset.Scope, minCompounds int) Result {
	if minCompounds < 1 {
		minCompounds = 1
	}
	res := Result{Scope: scope, MinCompounds: minCompounds, Columns: Columns(scope, minCompounds)}

	compounds := make(map[string]map[string]struct{})
	for _, p := range rows {
		if !InScope(p, scope) || !p.Summary(scope).Valid {
			continue
		}
		t := p.Key.TargetKey()
		if compounds[t] == nil {
			compounds[t] = make(map[string]struct{})
		}
		compounds[t][p.Key.CompoundID] = struct{}{}
	}

	enough := make(map[string]bool)
	for t, cpds := range compounds {
		if len(cpds) >= minCompounds {
			enough[t] = true
		}
	}

	known := make(map[string]bool)
	drug := make(map[string]bool)
	for _, p := range rows {
		t := p.Key.TargetKey()
		if !InScope(p, scope) || !enough[t] {
			continue
		}
		if p.Label.IsKnownInteraction() {
			known[t] = true
		}
		if p.Label == dataset.LabelDrug {
			drug[t] = true
		}
	}

	for _, p := range rows {
		if p.Subsets == nil {
			p.Subsets = make(map[string]bool, 3)
		}
		t := p.Key.TargetKey()
		in := InScope(p, scope)
		p.Subsets[res.Columns[0]] = in && enough[t]
		p.Subsets[res.Columns[1]] = in && known[t]
		p.Subsets[res.Columns[2]] = in && drug[t]
	}

	res.Targets = keys(enough)
	res.KnownTargets = keys(known)
	res.DrugTargets = keys(drug)
	return res
}

// Select returns the rows flagged with column, in input order.
func Select(rows []*dataset.CompoundTargetPair, column string) []*dataset.CompoundTargetPair {
	var out []*dataset.CompoundTargetPair
	for _, p := range rows {
		if p.Subsets[column] {
			out = append(out, p)
		}
	}
	return out
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
