// Package classify assigns DTI labels to aggregated compound-target pairs.
package classify

import (
	"github.com/fyrsmithlabs/dtiset/internal/aggregate"
	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/mechanism"
	"go.uber.org/zap"
)

// Input holds the facts a label is derived from.
type Input struct {
	// Phase is the maximum clinical phase of the canonical pair.
	Phase           dataset.Phase
	InReference     bool
	DiseaseRelevant bool
	HasPotency      bool
}

// Label derives the label for in. The first matching rule wins:
// phase 4, 3, 2, then 1 or 0.5; phase 0 with disease relevance; defined
// potency; otherwise NDtc.
func Label(in Input) dataset.Label {
	if l, ok := dataset.PhaseLabel(in.Phase); ok {
		return l
	}
	if in.DiseaseRelevant {
		return dataset.LabelPhase0
	}
	if in.HasPotency {
		return dataset.LabelComparator
	}
	return dataset.LabelNone
}

// BackfillPairs returns the reference pairs whose label does not depend on
// measured potency: pairs with a clinical phase or a disease-relevant
// mechanism. Other reference pairs only appear when measured.
func BackfillPairs(ref *mechanism.ReferenceSet) []dataset.PairID {
	var out []dataset.PairID
	for _, id := range ref.Pairs() {
		l := Label(Input{
			Phase:           ref.MaxPhase(id),
			InReference:     true,
			DiseaseRelevant: ref.DiseaseRelevant(id),
		})
		if l != dataset.LabelNone {
			out = append(out, id)
		}
	}
	return out
}

// Classifier labels table rows against a reference set.
type Classifier struct {
	ref    *mechanism.ReferenceSet
	logger *zap.Logger
}

// New creates a Classifier. A nil logger disables logging.
func New(ref *mechanism.ReferenceSet, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{ref: ref, logger: logger.Named("classify")}
}

// InputFor collects the label inputs of p.
func (c *Classifier) InputFor(p *dataset.CompoundTargetPair) Input {
	id := p.Key.Pair()
	return Input{
		Phase:           c.ref.MaxPhase(id),
		InReference:     c.ref.Contains(id),
		DiseaseRelevant: c.ref.DiseaseRelevant(id),
		HasPotency:      p.HasPotency(),
	}
}

// Classify sets the mechanism and therapeutic target flags, phase and label of every row in table
// and returns the number of rows per label.
func (c *Classifier) Classify(table *aggregate.Table) map[dataset.Label]int {
	counts := make(map[dataset.Label]int, len(dataset.Labels))
	for _, p := range table.Rows() {
		in := c.InputFor(p)

		p.InMechanisms = in.InReference
		p.VariantInMechanisms = in.InReference && p.Key.Mutation == ""
		p.KeepForBinding = p.Binding.Valid || p.VariantInMechanisms
		p.TherapeuticTarget = c.ref.IsTherapeuticTarget(p.Key.TargetID)
		p.MaxPhase = in.Phase
		p.Label = Label(in)

		counts[p.Label]++
	}

	fields := make([]zap.Field, 0, len(dataset.Labels))
	for _, l := range dataset.Labels {
		fields = append(fields, zap.Int(string(l), counts[l]))
	}
	c.logger.Debug("classification complete", fields...)
	return counts
}
