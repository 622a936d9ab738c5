package output

import (
	"database/sql"
	"sort"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

// column renders one CSV column of a dataset row.
type column struct {
	name  string
	value func(p *dataset.CompoundTargetPair) string
}

func identityColumns() []column {
	return []column{
		{"parent_molregno", func(p *dataset.CompoundTargetPair) string { return p.Key.CompoundID }},
		{"tid", func(p *dataset.CompoundTargetPair) string { return p.Key.TargetID }},
		{"tid_mutation", func(p *dataset.CompoundTargetPair) string { return p.Key.TargetKey() }},
		{"cpd_target_pair", func(p *dataset.CompoundTargetPair) string { return p.Key.Pair().String() }},
		{"cpd_target_pair_mutation", func(p *dataset.CompoundTargetPair) string { return p.Key.String() }},
		{"mutation", func(p *dataset.CompoundTargetPair) string { return p.Key.Mutation }},
		{"accession", func(p *dataset.CompoundTargetPair) string {
			if p.Variant == nil {
				return ""
			}
			return p.Variant.Accession
		}},
	}
}

// compoundColumns render compound metadata. Rows without metadata leave
// them empty.
func compoundColumns() []column {
	text := func(f func(*dataset.CompoundInfo) string) func(*dataset.CompoundTargetPair) string {
		return func(p *dataset.CompoundTargetPair) string {
			if p.Compound == nil {
				return ""
			}
			return f(p.Compound)
		}
	}
	flag := func(f func(*dataset.CompoundInfo) sql.Null[int32]) func(*dataset.CompoundTargetPair) string {
		return text(func(c *dataset.CompoundInfo) string { return formatInt(f(c)) })
	}

	return []column{
		{"parent_chemblid", text(func(c *dataset.CompoundInfo) string { return c.ChEMBLID })},
		{"parent_pref_name", text(func(c *dataset.CompoundInfo) string { return c.PrefName })},
		{"parent_max_phase", text(func(c *dataset.CompoundInfo) string { return formatNull(c.MaxPhase) })},
		{"first_approval", flag(func(c *dataset.CompoundInfo) sql.Null[int32] { return c.FirstApproval })},
		{"usan_year", flag(func(c *dataset.CompoundInfo) sql.Null[int32] { return c.USANYear })},
		{"black_box_warning", flag(func(c *dataset.CompoundInfo) sql.Null[int32] { return c.BlackBoxWarning })},
		{"prodrug", flag(func(c *dataset.CompoundInfo) sql.Null[int32] { return c.Prodrug })},
		{"oral", flag(func(c *dataset.CompoundInfo) sql.Null[int32] { return c.Oral })},
		{"parenteral", flag(func(c *dataset.CompoundInfo) sql.Null[int32] { return c.Parenteral })},
		{"topical", flag(func(c *dataset.CompoundInfo) sql.Null[int32] { return c.Topical })},
		{"first_publication_cpd", text(func(c *dataset.CompoundInfo) string { return formatYear(c.FirstPublication) })},
		{"atc_level1", text(func(c *dataset.CompoundInfo) string { return c.ATCLevel1 })},
		{"canonical_smiles", text(func(c *dataset.CompoundInfo) string { return c.CanonicalSMILES })},
		{"standard_inchi", text(func(c *dataset.CompoundInfo) string { return c.StandardInChI })},
		{"standard_inchi_key", text(func(c *dataset.CompoundInfo) string { return c.StandardInChIKey })},
	}
}

func targetColumns() []column {
	text := func(f func(*dataset.TargetInfo) string) func(*dataset.CompoundTargetPair) string {
		return func(p *dataset.CompoundTargetPair) string {
			if p.Target == nil {
				return ""
			}
			return f(p.Target)
		}
	}

	return []column{
		{"target_chembl_id", text(func(t *dataset.TargetInfo) string { return t.ChEMBLID })},
		{"target_pref_name", text(func(t *dataset.TargetInfo) string { return t.PrefName })},
		{"target_type", text(func(t *dataset.TargetInfo) string { return t.TargetType })},
		{"organism", text(func(t *dataset.TargetInfo) string { return t.Organism })},
		{"target_class_l1", text(func(t *dataset.TargetInfo) string { return t.ClassL1 })},
		{"target_class_l2", text(func(t *dataset.TargetInfo) string { return t.ClassL2 })},
	}
}

// summaryColumns renders the potency summary of scope with the scope name
// as suffix.
func summaryColumns(scope dataset.Scope) []column {
	s := "_" + string(scope)
	get := func(p *dataset.CompoundTargetPair) sql.Null[dataset.Summary] { return p.Summary(scope) }
	num := func(f func(dataset.Summary) float64) func(*dataset.CompoundTargetPair) string {
		return func(p *dataset.CompoundTargetPair) string {
			sum := get(p)
			if !sum.Valid {
				return ""
			}
			return formatFloat(f(sum.V))
		}
	}
	date := func(f func(dataset.Summary) sql.Null[time.Time]) func(*dataset.CompoundTargetPair) string {
		return func(p *dataset.CompoundTargetPair) string {
			sum := get(p)
			if !sum.Valid {
				return ""
			}
			return formatYear(f(sum.V))
		}
	}

	return []column{
		{"pchembl_value_mean" + s, num(func(v dataset.Summary) float64 { return v.Mean })},
		{"pchembl_value_max" + s, num(func(v dataset.Summary) float64 { return v.Max })},
		{"pchembl_value_median" + s, num(func(v dataset.Summary) float64 { return v.Median })},
		{"pchembl_value_count" + s, num(func(v dataset.Summary) float64 { return float64(v.Count) })},
		{"first_publication_cpd_target_pair" + s, date(func(v dataset.Summary) sql.Null[time.Time] { return v.FirstEvidence })},
		{"first_publication_cpd_target_pair_w_pchembl" + s, date(func(v dataset.Summary) sql.Null[time.Time] { return v.FirstPotencyEvidence })},
	}
}

func annotationColumns() []column {
	return []column{
		{"pair_mutation_in_dm_table", func(p *dataset.CompoundTargetPair) string { return formatBool(p.VariantInMechanisms) }},
		{"pair_in_dm_table", func(p *dataset.CompoundTargetPair) string { return formatBool(p.InMechanisms) }},
		{"keep_for_binding", func(p *dataset.CompoundTargetPair) string { return formatBool(p.KeepForBinding) }},
		{"max_phase", func(p *dataset.CompoundTargetPair) string { return formatFloat(float64(p.MaxPhase)) }},
		{"therapeutic_target", func(p *dataset.CompoundTargetPair) string { return formatBool(p.TherapeuticTarget) }},
		{"DTI", func(p *dataset.CompoundTargetPair) string { return string(p.Label) }},
	}
}

func descriptorColumns(names []string) []column {
	cols := make([]column, 0, len(names))
	for _, name := range names {
		cols = append(cols, column{name, func(p *dataset.CompoundTargetPair) string {
			v, ok := p.Descriptors.Get(name)
			if !ok {
				return ""
			}
			return formatFloat(v)
		}})
	}
	return cols
}

func efficiencyColumns(scope dataset.Scope) []column {
	s := "_" + string(scope)
	metric := func(f func(dataset.Efficiency) sql.Null[float64]) func(*dataset.CompoundTargetPair) string {
		return func(p *dataset.CompoundTargetPair) string {
			e, ok := p.Efficiency[scope]
			if !ok {
				return ""
			}
			return formatNull(f(e))
		}
	}
	return []column{
		{"LE" + s, metric(func(e dataset.Efficiency) sql.Null[float64] { return e.LE })},
		{"BEI" + s, metric(func(e dataset.Efficiency) sql.Null[float64] { return e.BEI })},
		{"SEI" + s, metric(func(e dataset.Efficiency) sql.Null[float64] { return e.SEI })},
		{"LLE" + s, metric(func(e dataset.Efficiency) sql.Null[float64] { return e.LLE })},
	}
}

func subsetColumns(names []string) []column {
	cols := make([]column, 0, len(names))
	for _, name := range names {
		cols = append(cols, column{name, func(p *dataset.CompoundTargetPair) string { return formatBool(p.Subsets[name]) }})
	}
	return cols
}

// Layout is the ordered column set of a dataset file.
type Layout struct {
	cols []column
}

// NewLayout returns the columns of a dataset file covering scopes. The
// literature summary is included when literature is set. Descriptor and
// subset column names are written in the given order.
func NewLayout(scopes []dataset.Scope, literature bool, descriptors, subsets []string) Layout {
	cols := identityColumns()
	cols = append(cols, compoundColumns()...)
	cols = append(cols, targetColumns()...)
	for _, s := range scopes {
		cols = append(cols, summaryColumns(s)...)
	}
	if literature {
		cols = append(cols, summaryColumns(dataset.ScopeLiterature)...)
	}
	cols = append(cols, annotationColumns()...)
	cols = append(cols, descriptorColumns(descriptors)...)
	for _, s := range scopes {
		cols = append(cols, efficiencyColumns(s)...)
	}
	cols = append(cols, subsetColumns(subsets)...)
	return Layout{cols: cols}
}

// Header returns the column names.
func (l Layout) Header() []string {
	out := make([]string, len(l.cols))
	for i, c := range l.cols {
		out[i] = c.name
	}
	return out
}

// Record renders p in column order.
func (l Layout) Record(p *dataset.CompoundTargetPair) []string {
	out := make([]string, len(l.cols))
	for i, c := range l.cols {
		out[i] = c.value(p)
	}
	return out
}

// DescriptorNames returns the sorted union of descriptor names in rows.
func DescriptorNames(rows []*dataset.CompoundTargetPair) []string {
	seen := make(map[string]struct{})
	for _, p := range rows {
		for name := range p.Descriptors {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNull(v sql.Null[float64]) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.V)
}

func formatInt(v sql.Null[int32]) string {
	if !v.Valid {
		return ""
	}
	return strconv.Itoa(int(v.V))
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// formatYear writes evidence dates as publication years.
func formatYear(v sql.Null[time.Time]) string {
	if !v.Valid {
		return ""
	}
	return strconv.Itoa(v.V.Year())
}
