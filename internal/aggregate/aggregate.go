// Package aggregate collapses raw activity measurements into one row per
// compound-target key with potency statistics.
package aggregate

import (
	"sort"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"go.uber.org/zap"
)

// Config controls which measurements contribute to a summary.
type Config struct {
	// LiteratureOnly restricts contributions to literature-derived rows.
	LiteratureOnly bool
	// MinEvidenceCount is the number of potency values a summary needs to
	// be defined. Values below 1 are treated as 1.
	MinEvidenceCount int
}

// DefaultConfig returns the default aggregation settings.
func DefaultConfig() Config {
	return Config{MinEvidenceCount: 1}
}

// Result describes what an aggregation run consumed and skipped.
type Result struct {
	Rows         int
	Contributing int
	// Dropped counts keys that had contributing rows but no summary
	// reaching MinEvidenceCount.
	Dropped   int
	Conflicts []*dataset.ConflictingKeyError
}

// ExcludedRows returns the number of rows removed by conflicting keys.
func (r *Result) ExcludedRows() int {
	n := 0
	for _, c := range r.Conflicts {
		n += c.Rows
	}
	return n
}

// Aggregator folds measurements into a Table.
type Aggregator struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an Aggregator. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinEvidenceCount < 1 {
		cfg.MinEvidenceCount = 1
	}
	return &Aggregator{cfg: cfg, logger: logger.Named("aggregate")}
}

type group struct {
	variant    *dataset.Variant
	accessions map[string]struct{}
	rows       int

	evidence   accumulator
	binding    accumulator
	literature accumulator
}

// Aggregate folds rows into one CompoundTargetPair per key. A row missing its
// compound or target id fails the whole run with an *InputShapeError.
// Keys observed with conflicting variant accessions are excluded and
// reported in the Result.
func (a *Aggregator) Aggregate(rows []dataset.RawMeasurement) (*Table, *Result, error) {
	res := &Result{Rows: len(rows)}
	groups := make(map[dataset.PairKey]*group)

	for i, m := range rows {
		if m.CompoundID == "" {
			return nil, nil, &dataset.InputShapeError{Source: "measurements", Row: i, Field: "compound_id"}
		}
		if m.TargetID == "" {
			return nil, nil, &dataset.InputShapeError{Source: "measurements", Row: i, Field: "target_id"}
		}

		key := m.Key()
		g, ok := groups[key]
		if !ok {
			g = &group{accessions: make(map[string]struct{})}
			groups[key] = g
		}
		g.rows++
		if m.Variant != nil {
			g.accessions[m.Variant.Accession] = struct{}{}
			if g.variant == nil {
				v := *m.Variant
				g.variant = &v
			}
		}

		if m.AssayType != dataset.AssayBinding && m.AssayType != dataset.AssayFunctional {
			continue
		}
		if m.Literature {
			g.literature.add(m)
		}
		if a.cfg.LiteratureOnly && !m.Literature {
			continue
		}
		res.Contributing++
		g.evidence.add(m)
		if m.AssayType == dataset.AssayBinding {
			g.binding.add(m)
		}
	}

	table := NewTable()
	for key, g := range groups {
		if len(g.accessions) > 1 {
			res.Conflicts = append(res.Conflicts, &dataset.ConflictingKeyError{
				Key:        key,
				Accessions: sortedKeys(g.accessions),
				Rows:       g.rows,
			})
			continue
		}

		evidence := g.evidence.summary(a.cfg.MinEvidenceCount)
		if !evidence.Valid {
			if g.evidence.rows > 0 {
				res.Dropped++
			}
			continue
		}

		table.put(&dataset.CompoundTargetPair{
			Key:        key,
			Variant:    g.variant,
			Evidence:   evidence,
			Binding:    g.binding.summary(a.cfg.MinEvidenceCount),
			Literature: g.literature.summary(a.cfg.MinEvidenceCount),
		})
	}

	sort.Slice(res.Conflicts, func(i, j int) bool {
		return res.Conflicts[i].Key.Less(res.Conflicts[j].Key)
	})
	for _, c := range res.Conflicts {
		a.logger.Warn("conflicting variant metadata, key excluded",
			zap.String("key", c.Key.String()),
			zap.Strings("accessions", c.Accessions),
			zap.Int("rows", c.Rows),
		)
	}

	a.logger.Debug("aggregation complete",
		zap.Int("rows", res.Rows),
		zap.Int("contributing", res.Contributing),
		zap.Int("pairs", table.Len()),
		zap.Int("dropped", res.Dropped),
		zap.Int("conflicts", len(res.Conflicts)),
	)
	return table, res, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
