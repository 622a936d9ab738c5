package refcache

import (
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

type snapshot struct {
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	Mechanisms []mechanismJSON `json:"mechanisms"`
	Relations  []relationJSON  `json:"relations"`
}

type mechanismJSON struct {
	CompoundID      string  `json:"compound_id"`
	TargetID        string  `json:"target_id"`
	MaxPhase        float64 `json:"max_phase"`
	DiseaseRelevant bool    `json:"disease_relevant,omitempty"`
}

type relationJSON struct {
	TargetID  string `json:"target_id"`
	RelatedID string `json:"related_id"`
	Kind      int    `json:"kind"`
}

func newSnapshot(records []dataset.MechanismRecord, relations []dataset.TargetRelation) *snapshot {
	s := &snapshot{
		Version:    snapshotVersion,
		CreatedAt:  time.Now().UTC(),
		Mechanisms: make([]mechanismJSON, len(records)),
		Relations:  make([]relationJSON, len(relations)),
	}
	for i, r := range records {
		s.Mechanisms[i] = mechanismJSON{
			CompoundID:      r.CompoundID,
			TargetID:        r.TargetID,
			MaxPhase:        float64(r.MaxPhase),
			DiseaseRelevant: r.DiseaseRelevant,
		}
	}
	for i, r := range relations {
		s.Relations[i] = relationJSON{TargetID: r.TargetID, RelatedID: r.RelatedID, Kind: int(r.Kind)}
	}
	return s
}

func (s *snapshot) records() []dataset.MechanismRecord {
	out := make([]dataset.MechanismRecord, len(s.Mechanisms))
	for i, m := range s.Mechanisms {
		out[i] = dataset.MechanismRecord{
			CompoundID:      m.CompoundID,
			TargetID:        m.TargetID,
			MaxPhase:        dataset.Phase(m.MaxPhase),
			DiseaseRelevant: m.DiseaseRelevant,
		}
	}
	return out
}

func (s *snapshot) relations() []dataset.TargetRelation {
	out := make([]dataset.TargetRelation, len(s.Relations))
	for i, r := range s.Relations {
		out[i] = dataset.TargetRelation{TargetID: r.TargetID, RelatedID: r.RelatedID, Kind: dataset.RelationKind(r.Kind)}
	}
	return out
}
