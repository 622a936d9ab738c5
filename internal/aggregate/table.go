package aggregate

import (
	"sort"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

// Table holds one CompoundTargetPair per key.
type Table struct {
	rows map[dataset.PairKey]*dataset.CompoundTargetPair
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{rows: make(map[dataset.PairKey]*dataset.CompoundTargetPair)}
}

func (t *Table) put(p *dataset.CompoundTargetPair) {
	t.rows[p.Key] = p
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Get returns the row for key.
func (t *Table) Get(key dataset.PairKey) (*dataset.CompoundTargetPair, bool) {
	p, ok := t.rows[key]
	return p, ok
}

// Rows returns the rows ordered by key.
func (t *Table) Rows() []*dataset.CompoundTargetPair {
	out := make([]*dataset.CompoundTargetPair, 0, len(t.rows))
	for _, p := range t.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out
}

// CompoundIDs returns the distinct compound ids, sorted.
func (t *Table) CompoundIDs() []string {
	seen := make(map[string]struct{}, len(t.rows))
	for k := range t.rows {
		seen[k.CompoundID] = struct{}{}
	}
	return sortedKeys(seen)
}

// TargetIDs returns the distinct variant-free target ids, sorted.
func (t *Table) TargetIDs() []string {
	seen := make(map[string]struct{}, len(t.rows))
	for k := range t.rows {
		seen[k.TargetID] = struct{}{}
	}
	return sortedKeys(seen)
}

// Backfill inserts a row with null statistics for every pair whose
// variant-free key is absent. Existing rows are never touched. It returns
// the number of rows inserted.
func (t *Table) Backfill(ids []dataset.PairID) int {
	n := 0
	for _, id := range ids {
		if id.CompoundID == "" || id.TargetID == "" {
			continue
		}
		key := id.Key()
		if _, ok := t.rows[key]; ok {
			continue
		}
		t.rows[key] = &dataset.CompoundTargetPair{Key: key, Backfilled: true}
		n++
	}
	return n
}
