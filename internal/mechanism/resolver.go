// Package mechanism resolves drug mechanism records into the reference set of
// known interacting compound-target pairs.
//
// Target identifiers are expanded through family, complex and homologue
// relationships by exactly one hop: a mechanism on a protein family also
// covers each member protein, and a mechanism on a member protein covers the
// family. Neighbours of neighbours are not included.
package mechanism

import (
	"sort"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"go.uber.org/zap"
)

// Skip reasons.
const (
	ReasonMissingCompound = "missing compound_id"
	ReasonMissingTarget   = "missing target_id"
)

// Skipped reports a mechanism record that could not be resolved.
type Skipped struct {
	Index  int
	Record dataset.MechanismRecord
	Reason string
}

// Resolver expands mechanism targets through the relation graph.
type Resolver struct {
	neighbours map[string]map[string]struct{}
	logger     *zap.Logger
}

// NewResolver indexes relations in both directions. Relations of unknown kind
// or with an empty endpoint are ignored.
func NewResolver(relations []dataset.TargetRelation, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		neighbours: make(map[string]map[string]struct{}),
		logger:     logger.Named("mechanism"),
	}

	ignored := 0
	for _, rel := range relations {
		if rel.Kind == dataset.RelationUnknown || rel.TargetID == "" || rel.RelatedID == "" {
			ignored++
			continue
		}
		r.link(rel.TargetID, rel.RelatedID)
		r.link(rel.RelatedID, rel.TargetID)
	}
	if ignored > 0 {
		r.logger.Debug("ignored target relations", zap.Int("count", ignored))
	}
	return r
}

func (r *Resolver) link(from, to string) {
	set, ok := r.neighbours[from]
	if !ok {
		set = make(map[string]struct{})
		r.neighbours[from] = set
	}
	set[to] = struct{}{}
}

// Equivalents returns the target itself and its direct neighbours, sorted.
func (r *Resolver) Equivalents(target string) []string {
	out := make([]string, 0, len(r.neighbours[target])+1)
	out = append(out, target)
	for t := range r.neighbours[target] {
		if t != target {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve builds the reference set from records. Records with a missing
// compound or target id are skipped and returned; they never fail the run.
func (r *Resolver) Resolve(records []dataset.MechanismRecord) (*ReferenceSet, []Skipped) {
	ref := newReferenceSet()
	var skipped []Skipped

	for i, rec := range records {
		switch {
		case rec.CompoundID == "":
			skipped = append(skipped, Skipped{Index: i, Record: rec, Reason: ReasonMissingCompound})
			continue
		case rec.TargetID == "":
			skipped = append(skipped, Skipped{Index: i, Record: rec, Reason: ReasonMissingTarget})
			continue
		}

		for _, t := range r.Equivalents(rec.TargetID) {
			ref.add(dataset.PairID{CompoundID: rec.CompoundID, TargetID: t}, rec.MaxPhase, rec.DiseaseRelevant)
		}
	}

	for _, s := range skipped {
		r.logger.Warn("mechanism record skipped",
			zap.Int("index", s.Index),
			zap.String("reason", s.Reason),
		)
	}
	r.logger.Debug("reference set resolved",
		zap.Int("records", len(records)),
		zap.Int("pairs", ref.Len()),
		zap.Int("disease_pairs", len(ref.disease)),
		zap.Int("targets", len(ref.targets)),
		zap.Int("skipped", len(skipped)),
	)
	return ref, skipped
}
