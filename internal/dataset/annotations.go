package dataset

import (
	"database/sql"
	"time"
)

// CompoundInfo is reference metadata of a parent compound. Text fields are
// empty when undefined.
type CompoundInfo struct {
	ChEMBLID string
	PrefName string

	// MaxPhase is the compound-level phase from molecule_dictionary. It is
	// independent of the pair phase used for labeling.
	MaxPhase        sql.Null[float64]
	FirstApproval   sql.Null[int32]
	USANYear        sql.Null[int32]
	BlackBoxWarning sql.Null[int32]
	Prodrug         sql.Null[int32]
	Oral            sql.Null[int32]
	Parenteral      sql.Null[int32]
	Topical         sql.Null[int32]

	// FirstPublication is the earliest document year mentioning the
	// compound, restricted to literature in literature-only runs.
	FirstPublication sql.Null[time.Time]
	// ATCLevel1 joins the distinct "<code>_<description>" level 1 ATC
	// classes of the compound, sorted, with " | ".
	ATCLevel1 string

	CanonicalSMILES  string
	StandardInChI    string
	StandardInChIKey string
}

// TargetInfo is reference metadata of a target.
type TargetInfo struct {
	ChEMBLID   string
	PrefName   string
	TargetType string
	Organism   string

	// ClassL1 and ClassL2 join the distinct level 1 and level 2 protein
	// classes of the target, sorted, with "|".
	ClassL1 string
	ClassL2 string
}

// AnnotationRequest selects the compounds and targets to annotate.
type AnnotationRequest struct {
	CompoundIDs    []string
	TargetIDs      []string
	LiteratureOnly bool
}

// Annotations are pass-through columns keyed by compound or target id.
// Missing entries leave the corresponding columns empty.
type Annotations struct {
	Descriptors map[string]Descriptors
	Compounds   map[string]CompoundInfo
	Targets     map[string]TargetInfo
}

// NewAnnotations returns empty annotations.
func NewAnnotations() *Annotations {
	return &Annotations{
		Descriptors: make(map[string]Descriptors),
		Compounds:   make(map[string]CompoundInfo),
		Targets:     make(map[string]TargetInfo),
	}
}

// Apply copies the annotations of each row's compound and target onto the
// row and returns the number of rows that received any annotation.
func (a *Annotations) Apply(rows []*CompoundTargetPair) int {
	n := 0
	for _, p := range rows {
		hit := false
		if d, ok := a.Descriptors[p.Key.CompoundID]; ok {
			p.Descriptors = d
			hit = true
		}
		if c, ok := a.Compounds[p.Key.CompoundID]; ok {
			p.Compound = &c
			hit = true
		}
		if t, ok := a.Targets[p.Key.TargetID]; ok {
			p.Target = &t
			hit = true
		}
		if hit {
			n++
		}
	}
	return n
}
