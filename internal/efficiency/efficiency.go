// Package efficiency derives ligand efficiency metrics from a mean potency
// and compound descriptors.
package efficiency

import (
	"database/sql"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

// LEFactor converts a negative log molar potency to kcal/mol per heavy atom
// (2.303 RT at 298 K).
const LEFactor = 2.303 * 298 * 0.00199

// Compute returns the efficiency metrics for a mean potency. A metric is
// undefined when the potency or its descriptor is undefined, or when the
// descriptor divides and is zero.
func Compute(mean sql.Null[float64], d dataset.Descriptors) dataset.Efficiency {
	var e dataset.Efficiency
	if !mean.Valid {
		return e
	}
	m := mean.V

	e.LE = ratio(m*LEFactor, d, dataset.DescHeavyAtoms)
	e.BEI = ratio(m*1000, d, dataset.DescMWFreebase)
	e.SEI = ratio(m*100, d, dataset.DescPSA)
	if alogp, ok := d.Get(dataset.DescALogP); ok {
		e.LLE = sql.Null[float64]{V: m - alogp, Valid: true}
	}
	return e
}

func ratio(num float64, d dataset.Descriptors, name string) sql.Null[float64] {
	den, ok := d.Get(name)
	if !ok || den == 0 {
		return sql.Null[float64]{}
	}
	return sql.Null[float64]{V: num / den, Valid: true}
}

// Apply sets the efficiency metrics of every row for the given scopes, from
// the mean of each scope's summary.
func Apply(rows []*dataset.CompoundTargetPair, scopes ...dataset.Scope) {
	for _, p := range rows {
		if p.Efficiency == nil {
			p.Efficiency = make(map[dataset.Scope]dataset.Efficiency, len(scopes))
		}
		for _, scope := range scopes {
			p.Efficiency[scope] = Compute(Mean(p, scope), p.Descriptors)
		}
	}
}

// Mean returns the mean potency of the row's summary for scope.
func Mean(p *dataset.CompoundTargetPair, scope dataset.Scope) sql.Null[float64] {
	s := p.Summary(scope)
	if !s.Valid {
		return sql.Null[float64]{}
	}
	return sql.Null[float64]{V: s.V.Mean, Valid: true}
}
