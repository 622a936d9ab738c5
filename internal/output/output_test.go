package output

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/pipeline"
	"github.com/fyrsmithlabs/dtiset/internal/stats"
	"github.com/fyrsmithlabs/dtiset/internal/subset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func summary(mean float64, count int, year int) sql.Null[dataset.Summary] {
	date := sql.Null[time.Time]{V: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	return sql.Null[dataset.Summary]{Valid: true, V: dataset.Summary{
		Mean: mean, Median: mean, Max: mean, Count: count,
		FirstEvidence: date, FirstPotencyEvidence: date,
	}}
}

func fixtureRows() []*dataset.CompoundTargetPair {
	drug := &dataset.CompoundTargetPair{
		Key:                 dataset.PairKey{CompoundID: "1", TargetID: "10"},
		Evidence:            summary(7.25, 2, 2011),
		Binding:             summary(7.25, 2, 2011),
		Literature:          summary(7.25, 2, 2011),
		InMechanisms:        true,
		VariantInMechanisms: true,
		KeepForBinding:      true,
		TherapeuticTarget:   true,
		MaxPhase:            dataset.PhaseApproved,
		Label:               dataset.LabelDrug,
		Compound: &dataset.CompoundInfo{
			ChEMBLID:         "CHEMBL25",
			PrefName:         "ASPIRIN",
			MaxPhase:         sql.Null[float64]{V: 4, Valid: true},
			FirstApproval:    sql.Null[int32]{V: 1950, Valid: true},
			Oral:             sql.Null[int32]{V: 1, Valid: true},
			Topical:          sql.Null[int32]{V: 0, Valid: true},
			FirstPublication: sql.Null[time.Time]{V: time.Date(1899, time.January, 1, 0, 0, 0, 0, time.UTC), Valid: true},
			ATCLevel1:        "B_BLOOD AND BLOOD FORMING ORGANS | N_NERVOUS SYSTEM",
			CanonicalSMILES:  "CC(=O)Oc1ccccc1C(=O)O",
		},
		Target: &dataset.TargetInfo{
			ChEMBLID:   "CHEMBL204",
			TargetType: "SINGLE PROTEIN",
			Organism:   "Homo sapiens",
			ClassL1:    "Enzyme",
			ClassL2:    "Protease",
		},
		Descriptors: dataset.Descriptors{dataset.DescHeavyAtoms: 20, dataset.DescALogP: 2.5},
		Efficiency: map[dataset.Scope]dataset.Efficiency{
			dataset.ScopeEvidence: {LLE: sql.Null[float64]{V: 4.75, Valid: true}},
		},
	}
	comparator := &dataset.CompoundTargetPair{
		Key:      dataset.PairKey{CompoundID: "2", TargetID: "10", Mutation: "V600E"},
		Variant:  &dataset.Variant{Mutation: "V600E", Accession: "P15056"},
		Evidence: summary(5, 1, 2015),
		Label:    dataset.LabelComparator,
	}
	return []*dataset.CompoundTargetPair{drug, comparator}
}

func fixtureResult(t *testing.T) *pipeline.Result {
	t.Helper()
	rows := fixtureRows()
	bf := subset.Annotate(rows, dataset.ScopeEvidence, 1)
	b := subset.Annotate(rows, dataset.ScopeBinding, 1)
	return &pipeline.Result{
		Rows:    rows,
		Subsets: []subset.Result{bf, b},
		Stats:   stats.Compute(rows),
		Report: &pipeline.Report{
			RunID:          "run-1",
			LiteratureOnly: true,
			Pairs:          len(rows),
			Sizes:          []stats.Size{stats.Sizes("classified", rows)},
		},
	}
}

func readCSV(t *testing.T, path string, comma rune) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = comma
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func columnValues(t *testing.T, records [][]string, name string) []string {
	t.Helper()
	require.NotEmpty(t, records)
	for i, h := range records[0] {
		if h == name {
			out := make([]string, 0, len(records)-1)
			for _, r := range records[1:] {
				out = append(out, r[i])
			}
			return out
		}
	}
	t.Fatalf("column %q not in header %v", name, records[0])
	return nil
}

func TestNewWriter_Delimiter(t *testing.T) {
	tests := []struct {
		delim   string
		wantErr bool
	}{
		{"", false},
		{";", false},
		{",", false},
		{"\t", false},
		{";;", true},
		{"\"", true},
		{"\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.delim, func(t *testing.T) {
			_, err := NewWriter(Options{Dir: t.TempDir(), Delimiter: tt.delim})
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidDelimiter)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewWriter_RequiresDir(t *testing.T) {
	_, err := NewWriter(Options{})
	require.Error(t, err)
}

func TestWriter_WriteResult(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Options{Dir: dir, ChEMBLVersion: "34", WriteFull: true, WriteBF: true})
	require.NoError(t, err)

	written, err := w.WriteResult(fixtureResult(t))
	require.NoError(t, err)

	base := func(name string) string { return filepath.Join(dir, name) }
	assert.Contains(t, written, base("ChEMBL34_CTI_literature_full_dataset.csv"))
	assert.Contains(t, written, base("ChEMBL34_CTI_literature_full_dataset_stats.csv"))
	assert.Contains(t, written, base("ChEMBL34_CTI_literature_BF.csv"))
	assert.Contains(t, written, base("ChEMBL34_CTI_literature_BF_1.csv"))
	assert.Contains(t, written, base("ChEMBL34_CTI_literature_BF_1_d_dt.csv"))
	assert.Contains(t, written, base("debug_sizes.csv"))
	for _, p := range written {
		assert.NotContains(t, filepath.Base(p), "_B.csv", "binding files are disabled")
		assert.FileExists(t, p)
	}

	full := readCSV(t, base("ChEMBL34_CTI_literature_full_dataset.csv"), ';')
	require.Len(t, full, 3)
	assert.Equal(t, []string{"1_10", "2_10_V600E"}, columnValues(t, full, "cpd_target_pair_mutation"))
	assert.Equal(t, []string{"", "P15056"}, columnValues(t, full, "accession"))
	assert.Equal(t, []string{"7.25", "5"}, columnValues(t, full, "pchembl_value_mean_BF"))
	assert.Equal(t, []string{"7.25", ""}, columnValues(t, full, "pchembl_value_mean_B"))
	assert.Equal(t, []string{"2", "1"}, columnValues(t, full, "pchembl_value_count_BF"))
	assert.Equal(t, []string{"2011", "2015"}, columnValues(t, full, "first_publication_cpd_target_pair_BF"))
	assert.Equal(t, []string{"D_DT", "Dtc"}, columnValues(t, full, "DTI"))
	assert.Equal(t, []string{"4", "0"}, columnValues(t, full, "max_phase"))
	assert.Equal(t, []string{"1", "0"}, columnValues(t, full, "keep_for_binding"))
	assert.Equal(t, []string{"1", "0"}, columnValues(t, full, "therapeutic_target"))
	assert.Equal(t, []string{"CHEMBL25", ""}, columnValues(t, full, "parent_chemblid"))
	assert.Equal(t, []string{"4", ""}, columnValues(t, full, "parent_max_phase"))
	assert.Equal(t, []string{"1950", ""}, columnValues(t, full, "first_approval"))
	assert.Equal(t, []string{"", ""}, columnValues(t, full, "usan_year"))
	assert.Equal(t, []string{"1", ""}, columnValues(t, full, "oral"))
	assert.Equal(t, []string{"0", ""}, columnValues(t, full, "topical"))
	assert.Equal(t, []string{"1899", ""}, columnValues(t, full, "first_publication_cpd"))
	assert.Equal(t, []string{"B_BLOOD AND BLOOD FORMING ORGANS | N_NERVOUS SYSTEM", ""}, columnValues(t, full, "atc_level1"))
	assert.Equal(t, []string{"CC(=O)Oc1ccccc1C(=O)O", ""}, columnValues(t, full, "canonical_smiles"))
	assert.Equal(t, []string{"CHEMBL204", ""}, columnValues(t, full, "target_chembl_id"))
	assert.Equal(t, []string{"Enzyme", ""}, columnValues(t, full, "target_class_l1"))
	assert.Equal(t, []string{"Protease", ""}, columnValues(t, full, "target_class_l2"))
	assert.Equal(t, []string{"20", ""}, columnValues(t, full, dataset.DescHeavyAtoms))
	assert.Equal(t, []string{"4.75", ""}, columnValues(t, full, "LLE_BF"))
	assert.Equal(t, []string{"1", "0"}, columnValues(t, full, "BF_1_d_dt"))
	assert.Equal(t, []string{"1", "0"}, columnValues(t, full, "B_1"))

	bf := readCSV(t, base("ChEMBL34_CTI_literature_BF.csv"), ';')
	assert.NotContains(t, bf[0], "pchembl_value_mean_B", "subset files only carry their own scope")
	assert.NotContains(t, bf[0], "pchembl_value_mean_literature")
	assert.NotContains(t, bf[0], "B_1")

	drugs := readCSV(t, base("ChEMBL34_CTI_literature_BF_1_d_dt.csv"), ';')
	require.Len(t, drugs, 2)
	assert.Equal(t, []string{"1_10"}, columnValues(t, drugs, "cpd_target_pair"))

	st := readCSV(t, base("ChEMBL34_CTI_literature_full_dataset_stats.csv"), ';')
	assert.Equal(t, []string{"column", "column_description", "subset_type", "counts"}, st[0])
	assert.Len(t, st, len(stats.Columns)*len(stats.Groups)+1)

	sizes := readCSV(t, base("debug_sizes.csv"), ';')
	assert.Len(t, sizes, len(stats.Columns)*2+1)
}

func TestWriter_AllSourcesPrefix(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Options{Dir: dir, Delimiter: ",", ChEMBLVersion: "33", WriteB: true})
	require.NoError(t, err)

	res := fixtureResult(t)
	res.Report.LiteratureOnly = false
	written, err := w.WriteResult(res)
	require.NoError(t, err)

	assert.Contains(t, written, filepath.Join(dir, "ChEMBL33_CTI_all_B.csv"))
	b := readCSV(t, filepath.Join(dir, "ChEMBL33_CTI_all_B.csv"), ',')
	require.Len(t, b, 2, "only rows kept for binding")
	assert.Contains(t, b[0], "pchembl_value_mean_B")
}

func TestWriter_WriteResult_NotBuilt(t *testing.T) {
	w, err := NewWriter(Options{Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = w.WriteResult(&pipeline.Result{Report: &pipeline.Report{}})
	require.ErrorIs(t, err, pipeline.ErrNotBuilt)
	_, err = w.WriteResult(nil)
	require.ErrorIs(t, err, pipeline.ErrNotBuilt)
}

func TestWriter_WriteReport(t *testing.T) {
	w, err := NewWriter(Options{Dir: t.TempDir()})
	require.NoError(t, err)

	res := fixtureResult(t)
	res.Report.Labels = map[dataset.Label]int{dataset.LabelDrug: 1, dataset.LabelComparator: 1}
	path, err := w.WriteReport(res.Report)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, true, got["literature_only"])
	assert.Equal(t, map[string]any{"D_DT": float64(1), "Dtc": float64(1)}, got["labels"])
}

func TestWriter_VerifyDetectsMismatch(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Options{Dir: dir})
	require.NoError(t, err)

	path := filepath.Join(dir, "short.csv")
	require.NoError(t, os.WriteFile(path, []byte("a;b\n1;2\n"), 0o644))

	err = w.verify(path, []string{"a", "b"}, 2)
	require.ErrorIs(t, err, ErrVerify)
	assert.Contains(t, err.Error(), "has 1 rows, wrote 2")

	err = w.verify(path, []string{"a", "b", "c"}, 1)
	require.ErrorIs(t, err, ErrVerify)

	require.NoError(t, w.verify(path, []string{"a", "b"}, 1))
}

func TestLayout_QuotesDelimiterInValues(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Options{Dir: dir, Delimiter: ";"})
	require.NoError(t, err)

	rows := []*dataset.CompoundTargetPair{{
		Key:     dataset.PairKey{CompoundID: "1", TargetID: "10", Mutation: "A;B"},
		Variant: &dataset.Variant{Mutation: "A;B"},
		Label:   dataset.LabelNone,
	}}
	_, err = w.writeDataset("quoted", NewLayout([]dataset.Scope{dataset.ScopeEvidence}, false, nil, nil), rows)
	require.NoError(t, err)

	records := readCSV(t, filepath.Join(dir, "quoted.csv"), ';')
	assert.Equal(t, []string{"A;B"}, columnValues(t, records, "mutation"))
}

func TestDescriptorNames(t *testing.T) {
	rows := []*dataset.CompoundTargetPair{
		{Descriptors: dataset.Descriptors{"psa": 1, "alogp": 2}},
		{},
		{Descriptors: dataset.Descriptors{"hba": 3, "psa": 4}},
	}
	assert.Equal(t, []string{"alogp", "hba", "psa"}, DescriptorNames(rows))
}
