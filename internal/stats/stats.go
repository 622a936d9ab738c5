// Package stats counts unique compounds, targets and pairs in a dataset,
// overall and per label group.
package stats

import (
	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

// Column is an identity the stats are counted over.
type Column struct {
	Name        string
	Description string
	value       func(p *dataset.CompoundTargetPair) string
}

// Columns lists the counted identities.
var Columns = []Column{
	{"compound_id", "compound ID", func(p *dataset.CompoundTargetPair) string { return p.Key.CompoundID }},
	{"target_id", "target ID", func(p *dataset.CompoundTargetPair) string { return p.Key.TargetID }},
	{"target_id_mutation", "target ID with mutation annotations", func(p *dataset.CompoundTargetPair) string { return p.Key.TargetKey() }},
	{"pair", "compound-target pair", func(p *dataset.CompoundTargetPair) string { return p.Key.Pair().String() }},
	{"pair_mutation", "compound-target pair with mutation annotations", func(p *dataset.CompoundTargetPair) string { return p.Key.String() }},
}

// Group selects rows by label.
type Group struct {
	Name   string
	Labels []dataset.Label // nil selects every row
}

// Groups lists the label groups in output order.
var Groups = []Group{
	{Name: "all"},
	{Name: "comparators", Labels: []dataset.Label{dataset.LabelComparator}},
	{Name: "drugs", Labels: []dataset.Label{dataset.LabelDrug}},
	{Name: "candidates", Labels: []dataset.Label{dataset.LabelPhase0, dataset.LabelPhase1, dataset.LabelPhase2, dataset.LabelPhase3}},
	{Name: "candidates_phase_3", Labels: []dataset.Label{dataset.LabelPhase3}},
	{Name: "candidates_phase_2", Labels: []dataset.Label{dataset.LabelPhase2}},
	{Name: "candidates_phase_1", Labels: []dataset.Label{dataset.LabelPhase1}},
	{Name: "candidates_phase_0", Labels: []dataset.Label{dataset.LabelPhase0}},
}

func (g Group) match(l dataset.Label) bool {
	if g.Labels == nil {
		return true
	}
	for _, want := range g.Labels {
		if l == want {
			return true
		}
	}
	return false
}

// Stat is the number of unique values of a column within a group.
type Stat struct {
	Column      string `json:"column"`
	Description string `json:"column_description"`
	Subset      string `json:"subset_type"`
	Count       int    `json:"counts"`
}

// Compute returns one Stat per column and group, columns outermost.
func Compute(rows []*dataset.CompoundTargetPair) []Stat {
	out := make([]Stat, 0, len(Columns)*len(Groups))
	for _, col := range Columns {
		for _, g := range Groups {
			out = append(out, Stat{
				Column:      col.Name,
				Description: col.Description,
				Subset:      g.Name,
				Count:       unique(rows, col, g.match),
			})
		}
	}
	return out
}

// Size records dataset size after a pipeline step.
type Size struct {
	Step  string         `json:"step"`
	All   map[string]int `json:"all"`
	Drugs map[string]int `json:"drugs"`
}

// Sizes counts every column over all rows and over D_DT rows.
func Sizes(step string, rows []*dataset.CompoundTargetPair) Size {
	s := Size{Step: step, All: make(map[string]int, len(Columns)), Drugs: make(map[string]int, len(Columns))}
	isDrug := func(l dataset.Label) bool { return l == dataset.LabelDrug }
	for _, col := range Columns {
		s.All[col.Name] = unique(rows, col, func(dataset.Label) bool { return true })
		s.Drugs[col.Name] = unique(rows, col, isDrug)
	}
	return s
}

func unique(rows []*dataset.CompoundTargetPair, col Column, keep func(dataset.Label) bool) int {
	seen := make(map[string]struct{})
	for _, p := range rows {
		if keep(p.Label) {
			seen[col.value(p)] = struct{}{}
		}
	}
	return len(seen)
}
