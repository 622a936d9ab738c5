package aggregate

import (
	"database/sql"
	"sort"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// accumulator folds the measurements of one key and scope.
type accumulator struct {
	values      []float64
	first       sql.Null[time.Time]
	firstWithPv sql.Null[time.Time]
	rows        int
}

func (a *accumulator) add(m dataset.RawMeasurement) {
	a.rows++
	if m.EvidenceDate.Valid {
		a.first = earliest(a.first, m.EvidenceDate.V)
	}
	if !m.Potency.Valid {
		return
	}
	a.values = append(a.values, m.Potency.V)
	if m.EvidenceDate.Valid {
		a.firstWithPv = earliest(a.firstWithPv, m.EvidenceDate.V)
	}
}

// summary computes the statistics. It is undefined when fewer than
// minCount potency values were folded.
func (a *accumulator) summary(minCount int) sql.Null[dataset.Summary] {
	if a == nil || len(a.values) == 0 || len(a.values) < minCount {
		return sql.Null[dataset.Summary]{}
	}

	// Sorting first keeps the floating point sum independent of input order.
	sorted := append([]float64(nil), a.values...)
	sort.Float64s(sorted)

	return sql.Null[dataset.Summary]{
		V: dataset.Summary{
			Mean:                 stat.Mean(sorted, nil),
			Median:               median(sorted),
			Max:                  floats.Max(sorted),
			Count:                len(sorted),
			FirstEvidence:        a.first,
			FirstPotencyEvidence: a.firstWithPv,
		},
		Valid: true,
	}
}

// median of an ascending slice; the midpoint of the two central values for
// even lengths.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func earliest(cur sql.Null[time.Time], t time.Time) sql.Null[time.Time] {
	if !cur.Valid || t.Before(cur.V) {
		return sql.Null[time.Time]{V: t, Valid: true}
	}
	return cur
}
