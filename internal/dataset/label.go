package dataset

import (
	"fmt"
	"math"
)

// Phase is the maximum clinical phase reached by a compound for a mechanism.
type Phase float64

const (
	PhaseNone     Phase = 0
	PhaseEarly    Phase = 0.5
	Phase1        Phase = 1
	Phase2        Phase = 2
	Phase3        Phase = 3
	PhaseApproved Phase = 4
)

// ParsePhase converts a raw max_phase value. Negative values (ChEMBL uses -1
// for "unknown") and NaN map to PhaseNone; values outside the known phases
// are rejected.
func ParsePhase(v float64) (Phase, error) {
	if math.IsNaN(v) || v < 0 {
		return PhaseNone, nil
	}
	switch p := Phase(v); p {
	case PhaseNone, PhaseEarly, Phase1, Phase2, Phase3, PhaseApproved:
		return p, nil
	}
	return PhaseNone, fmt.Errorf("%w: %v", ErrInvalidPhase, v)
}

// Label is the DTI annotation of a compound-target pair.
type Label string

const (
	LabelDrug       Label = "D_DT"
	LabelPhase3     Label = "C3_DT"
	LabelPhase2     Label = "C2_DT"
	LabelPhase1     Label = "C1_DT"
	LabelPhase0     Label = "C0_DT"
	LabelComparator Label = "Dtc"
	LabelNone       Label = "NDtc"
)

// Labels lists all labels in precedence order, strongest first.
var Labels = []Label{
	LabelDrug,
	LabelPhase3,
	LabelPhase2,
	LabelPhase1,
	LabelPhase0,
	LabelComparator,
	LabelNone,
}

// Rank returns the precedence of the label, 0 being strongest.
// Unknown labels rank after NDtc.
func (l Label) Rank() int {
	for i, known := range Labels {
		if l == known {
			return i
		}
	}
	return len(Labels)
}

// Valid reports whether l is one of the defined labels.
func (l Label) Valid() bool {
	return l.Rank() < len(Labels)
}

// IsKnownInteraction reports whether the label comes from mechanism
// evidence (D_DT through C0_DT).
func (l Label) IsKnownInteraction() bool {
	return l.Rank() <= LabelPhase0.Rank()
}

// IsClinical reports whether the label is assigned from a clinical phase.
func (l Label) IsClinical() bool {
	return l.Rank() <= LabelPhase1.Rank()
}

// PhaseLabel returns the label a clinical phase maps to. ok is false for
// PhaseNone, which is not decided by phase alone.
func PhaseLabel(p Phase) (Label, bool) {
	switch p {
	case PhaseApproved:
		return LabelDrug, true
	case Phase3:
		return LabelPhase3, true
	case Phase2:
		return LabelPhase2, true
	case Phase1, PhaseEarly:
		return LabelPhase1, true
	}
	return "", false
}
