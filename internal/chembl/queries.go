package chembl

import (
	"strings"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

// uncheckedTargetID is the ChEMBL placeholder target for unassigned
// activities.
const uncheckedTargetID = "22226"

// measurementsQuery selects one row per activity with a pChEMBL value,
// keyed by parent compound and target.
const measurementsQuery = `
SELECT mh.parent_molregno::text,
    td.tid::text,
    act.pchembl_value::float8,
    docs.year,
    COALESCE(docs.src_id = 1, false),
    ass.assay_type,
    vs.mutation,
    vs.accession
FROM activities act
INNER JOIN molecule_hierarchy mh
    ON act.molregno = mh.molregno
INNER JOIN assays ass
    ON act.assay_id = ass.assay_id
LEFT JOIN variant_sequences vs
    ON ass.variant_id = vs.variant_id
INNER JOIN target_dictionary td
    ON ass.tid = td.tid
LEFT JOIN docs
    ON act.doc_id = docs.doc_id
WHERE act.pchembl_value IS NOT NULL
    AND act.potential_duplicate = 0
    AND act.standard_relation = '='
    AND act.data_validity_comment IS NULL
    AND td.tid <> ` + uncheckedTargetID + `
    AND td.target_type LIKE '%PROTEIN%'`

const literatureFilter = `
    AND docs.src_id = 1`

// buildMeasurementsQuery returns the activity query, restricted to
// literature documents when literatureOnly is set.
func buildMeasurementsQuery(literatureOnly bool) string {
	if literatureOnly {
		return measurementsQuery + literatureFilter
	}
	return measurementsQuery
}

const mechanismsQuery = `
SELECT DISTINCT mh.parent_molregno::text,
    dm.tid::text,
    md.max_phase::float8,
    COALESCE(dm.disease_efficacy = 1, false)
FROM drug_mechanism dm
INNER JOIN molecule_hierarchy mh
    ON dm.molregno = mh.molregno
INNER JOIN molecule_dictionary md
    ON mh.parent_molregno = md.molregno
WHERE dm.tid IS NOT NULL`

// relationsQuery selects target relations pointing at single proteins. The
// relation kind is decided by relationKind.
const relationsQuery = `
SELECT DISTINCT tr.tid::text,
    tr.related_tid::text,
    tr.relationship,
    td1.target_type,
    td2.target_type
FROM target_relations tr
INNER JOIN target_dictionary td1
    ON tr.tid = td1.tid
INNER JOIN target_dictionary td2
    ON tr.related_tid = td2.tid
WHERE td2.target_type = 'SINGLE PROTEIN'`

// DescriptorColumns are the compound_properties columns returned by Enrich.
var DescriptorColumns = []string{
	dataset.DescMWFreebase,
	dataset.DescALogP,
	"hba",
	"hbd",
	dataset.DescPSA,
	"rtb",
	"num_ro5_violations",
	"cx_most_apka",
	"cx_most_bpka",
	"cx_logp",
	"cx_logd",
	"full_mwt",
	"aromatic_rings",
	dataset.DescHeavyAtoms,
	"qed_weighted",
	"mw_monoisotopic",
	"hba_lipinski",
	"hbd_lipinski",
	"num_lipinski_ro5_violations",
}

// buildDescriptorsQuery selects DescriptorColumns for the parent molregnos
// passed as an int8 array in $1.
func buildDescriptorsQuery() string {
	var b strings.Builder
	b.WriteString("\nSELECT cp.molregno::text")
	for _, c := range DescriptorColumns {
		b.WriteString(",\n    cp.")
		b.WriteString(c)
		b.WriteString("::float8")
	}
	b.WriteString("\nFROM compound_properties cp\nWHERE cp.molregno = ANY($1::int8[])")
	return b.String()
}

const compoundsQuery = `
SELECT md.molregno::text,
    md.chembl_id,
    md.pref_name,
    md.max_phase::float8,
    md.first_approval::int4,
    md.usan_year::int4,
    md.black_box_warning::int4,
    md.prodrug::int4,
    md.oral::int4,
    md.parenteral::int4,
    md.topical::int4,
    cs.canonical_smiles,
    cs.standard_inchi,
    cs.standard_inchi_key
FROM molecule_dictionary md
LEFT JOIN compound_structures cs
    ON md.molregno = cs.molregno
WHERE md.molregno = ANY($1::int8[])`

// firstPublicationQuery selects the earliest document year of each parent
// compound over all compound records of its salt forms.
const firstPublicationQuery = `
SELECT mh.parent_molregno::text,
    MIN(docs.year)::int4
FROM docs
INNER JOIN compound_records cr
    ON docs.doc_id = cr.doc_id
INNER JOIN molecule_hierarchy mh
    ON cr.molregno = mh.molregno
WHERE docs.year IS NOT NULL
    AND mh.parent_molregno = ANY($1::int8[])`

const firstPublicationGroup = `
GROUP BY mh.parent_molregno`

// buildFirstPublicationQuery restricts the documents to literature when
// literatureOnly is set.
func buildFirstPublicationQuery(literatureOnly bool) string {
	if literatureOnly {
		return firstPublicationQuery + literatureFilter + firstPublicationGroup
	}
	return firstPublicationQuery + firstPublicationGroup
}

const atcQuery = `
SELECT DISTINCT mh.parent_molregno::text,
    atc.level1,
    atc.level1_description
FROM atc_classification atc
INNER JOIN molecule_atc_classification matc
    ON atc.level5 = matc.level5
INNER JOIN molecule_hierarchy mh
    ON matc.molregno = mh.molregno
WHERE mh.parent_molregno = ANY($1::int8[])`

const targetsQuery = `
SELECT td.tid::text,
    td.chembl_id,
    td.pref_name,
    td.target_type,
    td.organism
FROM target_dictionary td
WHERE td.tid = ANY($1::int8[])`

// targetClassesQuery walks protein_classification from its roots and
// returns the level 1 and level 2 class names of every class assigned to a
// component of the targets in $1.
const targetClassesQuery = `
WITH RECURSIVE pc_path AS (
    SELECT protein_class_id,
        0 AS depth,
        NULL::text AS l1,
        NULL::text AS l2
    FROM protein_classification
    WHERE parent_id IS NULL
    UNION ALL
    SELECT pc.protein_class_id,
        p.depth + 1,
        CASE WHEN p.depth = 0 THEN pc.pref_name ELSE p.l1 END,
        CASE WHEN p.depth = 1 THEN pc.pref_name ELSE p.l2 END
    FROM protein_classification pc
    INNER JOIN pc_path p
        ON pc.parent_id = p.protein_class_id
)
SELECT DISTINCT tc.tid::text,
    path.l1,
    path.l2
FROM target_components tc
INNER JOIN component_class cc
    ON tc.component_id = cc.component_id
INNER JOIN pc_path path
    ON cc.protein_class_id = path.protein_class_id
WHERE tc.tid = ANY($1::int8[])`

// relationKind maps a target_relations row to the relation kinds the
// resolver expands over. Everything else is RelationUnknown.
func relationKind(relationship, fromType, toType string) dataset.RelationKind {
	if toType != "SINGLE PROTEIN" {
		return dataset.RelationUnknown
	}
	switch relationship {
	case "SUPERSET OF":
		switch fromType {
		case "PROTEIN FAMILY":
			return dataset.RelationFamily
		case "PROTEIN COMPLEX", "PROTEIN COMPLEX GROUP", "CHIMERIC PROTEIN", "PROTEIN-PROTEIN INTERACTION":
			return dataset.RelationComplex
		}
	case "EQUIVALENT TO":
		if fromType == "SINGLE PROTEIN" {
			return dataset.RelationHomologue
		}
	}
	return dataset.RelationUnknown
}
