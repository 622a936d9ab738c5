package dataset

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  PairKey
		want string
	}{
		{"no variant", PairKey{CompoundID: "1", TargetID: "A"}, "1_A"},
		{"variant", PairKey{CompoundID: "1", TargetID: "A", Mutation: "V600E"}, "1_A_V600E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.key.String())
			assert.Equal(t, PairID{CompoundID: "1", TargetID: "A"}, tt.key.Pair())
		})
	}
}

func TestRawMeasurement_Key(t *testing.T) {
	m := RawMeasurement{CompoundID: "7", TargetID: "T"}
	assert.Equal(t, PairKey{CompoundID: "7", TargetID: "T"}, m.Key())

	m.Variant = &Variant{Mutation: "L858R", Accession: "P00533"}
	assert.Equal(t, "L858R", m.Key().Mutation)
}

func TestPairKey_Less(t *testing.T) {
	a := PairKey{CompoundID: "1", TargetID: "A"}
	b := PairKey{CompoundID: "1", TargetID: "A", Mutation: "X"}
	c := PairKey{CompoundID: "1", TargetID: "B"}

	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.False(t, c.Less(a))
	assert.False(t, a.Less(a))
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in      float64
		want    Phase
		wantErr bool
	}{
		{4, PhaseApproved, false},
		{3, Phase3, false},
		{0.5, PhaseEarly, false},
		{0, PhaseNone, false},
		{-1, PhaseNone, false},
		{math.NaN(), PhaseNone, false},
		{2.5, PhaseNone, true},
		{5, PhaseNone, true},
	}

	for _, tt := range tests {
		got, err := ParsePhase(tt.in)
		if tt.wantErr {
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPhase))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ParsePhase(%v)", tt.in)
	}
}

func TestLabel_Precedence(t *testing.T) {
	for i, l := range Labels {
		assert.Equal(t, i, l.Rank())
		assert.True(t, l.Valid())
	}
	assert.False(t, Label("DT").Valid())

	assert.True(t, LabelPhase0.IsKnownInteraction())
	assert.False(t, LabelComparator.IsKnownInteraction())
	assert.True(t, LabelPhase1.IsClinical())
	assert.False(t, LabelPhase0.IsClinical())
}

func TestPhaseLabel(t *testing.T) {
	tests := []struct {
		phase Phase
		want  Label
		ok    bool
	}{
		{PhaseApproved, LabelDrug, true},
		{Phase3, LabelPhase3, true},
		{Phase2, LabelPhase2, true},
		{Phase1, LabelPhase1, true},
		{PhaseEarly, LabelPhase1, true},
		{PhaseNone, "", false},
	}

	for _, tt := range tests {
		got, ok := PhaseLabel(tt.phase)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}

func TestErrors_Unwrap(t *testing.T) {
	var err error = &InputShapeError{Source: "activities", Row: 3, Field: "target_id"}
	assert.True(t, errors.Is(err, ErrInputShape))
	assert.Equal(t, "activities row 3: missing target_id", err.Error())

	err = &ConflictingKeyError{Key: PairKey{CompoundID: "1", TargetID: "A"}, Accessions: []string{"P1", "P2"}, Rows: 4}
	assert.True(t, errors.Is(err, ErrConflictingKey))
	assert.Contains(t, err.Error(), "1_A")
}

func TestDescriptors_Get(t *testing.T) {
	var nilDesc Descriptors
	_, ok := nilDesc.Get(DescPSA)
	assert.False(t, ok)

	d := Descriptors{DescPSA: 40.5, DescALogP: math.NaN()}
	v, ok := d.Get(DescPSA)
	assert.True(t, ok)
	assert.Equal(t, 40.5, v)

	_, ok = d.Get(DescALogP)
	assert.False(t, ok)
}
