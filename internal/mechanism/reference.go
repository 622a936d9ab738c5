package mechanism

import (
	"sort"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

// ReferenceSet is the resolved set of known interacting pairs. It is
// read-only once returned by Resolve.
type ReferenceSet struct {
	phases  map[dataset.PairID]dataset.Phase
	disease map[dataset.PairID]struct{}
	targets map[string]struct{}
}

func newReferenceSet() *ReferenceSet {
	return &ReferenceSet{
		phases:  make(map[dataset.PairID]dataset.Phase),
		disease: make(map[dataset.PairID]struct{}),
		targets: make(map[string]struct{}),
	}
}

func (s *ReferenceSet) add(id dataset.PairID, phase dataset.Phase, diseaseRelevant bool) {
	if cur, ok := s.phases[id]; !ok || phase > cur {
		s.phases[id] = phase
	}
	if diseaseRelevant {
		s.disease[id] = struct{}{}
	}
	s.targets[id.TargetID] = struct{}{}
}

// Len returns the number of known pairs.
func (s *ReferenceSet) Len() int { return len(s.phases) }

// Contains reports whether id is a known interacting pair.
func (s *ReferenceSet) Contains(id dataset.PairID) bool {
	_, ok := s.phases[id]
	return ok
}

// DiseaseRelevant reports whether id is in the disease-relevant subset.
func (s *ReferenceSet) DiseaseRelevant(id dataset.PairID) bool {
	_, ok := s.disease[id]
	return ok
}

// MaxPhase returns the highest phase recorded for id, or PhaseNone.
func (s *ReferenceSet) MaxPhase(id dataset.PairID) dataset.Phase {
	return s.phases[id]
}

// IsTherapeuticTarget reports whether any mechanism reaches target.
func (s *ReferenceSet) IsTherapeuticTarget(target string) bool {
	_, ok := s.targets[target]
	return ok
}

// Pairs returns all known pairs ordered by compound then target.
func (s *ReferenceSet) Pairs() []dataset.PairID {
	out := make([]dataset.PairID, 0, len(s.phases))
	for id := range s.phases {
		out = append(out, id)
	}
	sortPairs(out)
	return out
}

// DiseasePairs returns the disease-relevant pairs, ordered.
func (s *ReferenceSet) DiseasePairs() []dataset.PairID {
	out := make([]dataset.PairID, 0, len(s.disease))
	for id := range s.disease {
		out = append(out, id)
	}
	sortPairs(out)
	return out
}

// TargetCount returns the number of therapeutic targets.
func (s *ReferenceSet) TargetCount() int { return len(s.targets) }

func sortPairs(ids []dataset.PairID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Key().Less(ids[j].Key())
	})
}
