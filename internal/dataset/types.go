package dataset

import (
	"database/sql"
	"time"
)

// AssayType is the ChEMBL assay classification of a measurement.
type AssayType string

const (
	AssayBinding    AssayType = "B"
	AssayFunctional AssayType = "F"
	AssayADMET      AssayType = "A"
	AssayOther      AssayType = "U"
)

// Variant describes the mutated form of a target a measurement was taken on.
type Variant struct {
	Mutation  string
	Accession string
}

// RawMeasurement is one assay result as delivered by a row source.
type RawMeasurement struct {
	CompoundID   string
	TargetID     string
	Potency      sql.Null[float64]
	EvidenceDate sql.Null[time.Time]
	Literature   bool
	AssayType    AssayType
	Variant      *Variant
}

// Key returns the aggregation key of the measurement.
func (m RawMeasurement) Key() PairKey {
	k := PairKey{CompoundID: m.CompoundID, TargetID: m.TargetID}
	if m.Variant != nil {
		k.Mutation = m.Variant.Mutation
	}
	return k
}

// PairID is a canonical compound-target identity without variant.
type PairID struct {
	CompoundID string
	TargetID   string
}

func (p PairID) String() string {
	return p.CompoundID + "_" + p.TargetID
}

// Key returns the variant-free aggregation key for the pair.
func (p PairID) Key() PairKey {
	return PairKey{CompoundID: p.CompoundID, TargetID: p.TargetID}
}

// PairKey identifies one aggregated row.
type PairKey struct {
	CompoundID string
	TargetID   string
	Mutation   string
}

// Pair drops the variant from the key.
func (k PairKey) Pair() PairID {
	return PairID{CompoundID: k.CompoundID, TargetID: k.TargetID}
}

// TargetKey is the variant-aware target identity, e.g. "A" or "A_V600E".
func (k PairKey) TargetKey() string {
	if k.Mutation == "" {
		return k.TargetID
	}
	return k.TargetID + "_" + k.Mutation
}

func (k PairKey) String() string {
	return k.CompoundID + "_" + k.TargetKey()
}

// Less orders keys by compound, target, then mutation.
func (k PairKey) Less(o PairKey) bool {
	if k.CompoundID != o.CompoundID {
		return k.CompoundID < o.CompoundID
	}
	if k.TargetID != o.TargetID {
		return k.TargetID < o.TargetID
	}
	return k.Mutation < o.Mutation
}

// Scope selects which evidence a summary was computed over.
type Scope string

const (
	// ScopeEvidence is binding plus functional assays ("BF").
	ScopeEvidence Scope = "BF"
	// ScopeBinding is binding assays only ("B").
	ScopeBinding Scope = "B"
	// ScopeLiterature is the literature-derived subset of ScopeEvidence.
	ScopeLiterature Scope = "literature"
)

// Summary holds the aggregated potency statistics of one pair and scope.
type Summary struct {
	Mean   float64
	Median float64
	Max    float64
	Count  int

	// FirstEvidence is the earliest date over all contributing rows,
	// including rows without a defined potency.
	FirstEvidence sql.Null[time.Time]
	// FirstPotencyEvidence only considers rows with a defined potency.
	FirstPotencyEvidence sql.Null[time.Time]
}

// Efficiency holds ligand efficiency metrics derived from a mean potency.
type Efficiency struct {
	LE  sql.Null[float64]
	BEI sql.Null[float64]
	SEI sql.Null[float64]
	LLE sql.Null[float64]
}

// CompoundTargetPair is one row of the dataset.
type CompoundTargetPair struct {
	Key     PairKey
	Variant *Variant

	Evidence   sql.Null[Summary]
	Binding    sql.Null[Summary]
	Literature sql.Null[Summary]

	// InMechanisms reports whether Key.Pair() is in the reference set.
	InMechanisms bool
	// VariantInMechanisms reports whether the variant-aware key is, i.e.
	// InMechanisms holds and the row carries no mutation.
	VariantInMechanisms bool
	KeepForBinding      bool
	// TherapeuticTarget reports whether any mechanism reaches the target.
	TherapeuticTarget bool
	// Backfilled marks rows synthesized from mechanism data.
	Backfilled bool

	MaxPhase Phase
	Label    Label

	Compound    *CompoundInfo
	Target      *TargetInfo
	Descriptors Descriptors
	Efficiency  map[Scope]Efficiency
	Subsets     map[string]bool
}

// HasPotency reports whether the pair carries a defined aggregated potency.
func (p *CompoundTargetPair) HasPotency() bool {
	return p.Evidence.Valid
}

// Summary returns the summary of the given scope.
func (p *CompoundTargetPair) Summary(scope Scope) sql.Null[Summary] {
	switch scope {
	case ScopeBinding:
		return p.Binding
	case ScopeLiterature:
		return p.Literature
	default:
		return p.Evidence
	}
}

// MechanismRecord asserts a compound acts on a target through a documented
// mechanism.
type MechanismRecord struct {
	CompoundID      string
	TargetID        string
	MaxPhase        Phase
	DiseaseRelevant bool
}

// RelationKind classifies a target relationship.
type RelationKind int

const (
	RelationUnknown RelationKind = iota
	// RelationFamily links a protein family to a member protein.
	RelationFamily
	// RelationComplex links a complex, complex group, chimeric protein or
	// protein-protein interaction to a member protein.
	RelationComplex
	// RelationHomologue links two equivalent single proteins.
	RelationHomologue
)

func (k RelationKind) String() string {
	switch k {
	case RelationFamily:
		return "family"
	case RelationComplex:
		return "complex"
	case RelationHomologue:
		return "homologue"
	default:
		return "unknown"
	}
}

// TargetRelation is one row of the target relationship table.
type TargetRelation struct {
	TargetID  string
	RelatedID string
	Kind      RelationKind
}
