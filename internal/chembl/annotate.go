package chembl

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/jackc/pgx/v5"
)

// unclassifiedProtein is dropped from level 1 classes when a target has
// another level 1 class.
const unclassifiedProtein = "Unclassified protein"

// Enrich returns descriptors and reference metadata for the compounds and
// targets of req. Ids are ChEMBL molregnos and tids; entities without data
// are absent from the result.
func (s *Source) Enrich(ctx context.Context, req dataset.AnnotationRequest) (*dataset.Annotations, error) {
	ann := dataset.NewAnnotations()

	molregnos, err := parseIDs(req.CompoundIDs)
	if err != nil {
		return nil, fmt.Errorf("compound ids: %w", err)
	}
	tids, err := parseIDs(req.TargetIDs)
	if err != nil {
		return nil, fmt.Errorf("target ids: %w", err)
	}

	if len(molregnos) > 0 {
		if err := s.enrichCompounds(ctx, ann, molregnos, req.LiteratureOnly); err != nil {
			return nil, err
		}
	}
	if len(tids) > 0 {
		if err := s.enrichTargets(ctx, ann, tids); err != nil {
			return nil, err
		}
	}
	return ann, nil
}

func (s *Source) enrichCompounds(ctx context.Context, ann *dataset.Annotations, molregnos []int64, literatureOnly bool) error {
	descs, err := query(ctx, s, "compound_properties", buildDescriptorsQuery(), scanDescriptors, molregnos)
	if err != nil {
		return err
	}
	for _, r := range descs {
		ann.Descriptors[r.compoundID] = r.descriptors
	}

	cpds, err := query(ctx, s, "molecule_dictionary", compoundsQuery, scanCompound, molregnos)
	if err != nil {
		return err
	}
	for _, r := range cpds {
		ann.Compounds[r.id] = r.info
	}

	firsts, err := query(ctx, s, "first_publication", buildFirstPublicationQuery(literatureOnly), scanFirstPublication, molregnos)
	if err != nil {
		return err
	}
	for _, r := range firsts {
		c := ann.Compounds[r.id]
		c.FirstPublication = sql.Null[time.Time]{V: yearDate(r.year), Valid: true}
		ann.Compounds[r.id] = c
	}

	atc, err := query(ctx, s, "atc_classification", atcQuery, scanClassPair, molregnos)
	if err != nil {
		return err
	}
	for id, classes := range atcLevel1(atc) {
		c := ann.Compounds[id]
		c.ATCLevel1 = classes
		ann.Compounds[id] = c
	}
	return nil
}

func (s *Source) enrichTargets(ctx context.Context, ann *dataset.Annotations, tids []int64) error {
	targets, err := query(ctx, s, "target_dictionary", targetsQuery, scanTarget, tids)
	if err != nil {
		return err
	}
	for _, r := range targets {
		ann.Targets[r.id] = r.info
	}

	classes, err := query(ctx, s, "protein_classification", targetClassesQuery, scanClassPair, tids)
	if err != nil {
		return err
	}
	l1, l2 := targetClasses(classes)
	for id, v := range l1 {
		t := ann.Targets[id]
		t.ClassL1 = v
		ann.Targets[id] = t
	}
	for id, v := range l2 {
		t := ann.Targets[id]
		t.ClassL2 = v
		ann.Targets[id] = t
	}
	return nil
}

// parseIDs converts text ids into the int8 array the annotation queries
// compare against. Duplicates are kept; the database ignores them.
func parseIDs(ids []string) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", id, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// classPair is an id with two optional class columns: ATC code and
// description, or level 1 and level 2 protein class.
type classPair struct {
	id   string
	a, b string
}

// atcLevel1 joins "<code>_<description>" per compound, sorted, with " | ".
func atcLevel1(rows []classPair) map[string]string {
	sets := make(map[string]map[string]struct{})
	for _, r := range rows {
		if r.a == "" {
			continue
		}
		addClass(sets, r.id, r.a+"_"+r.b)
	}
	return joinClasses(sets, " | ")
}

// targetClasses joins the level 1 and level 2 classes per target with "|".
// Level 1 "Unclassified protein" only survives as a target's sole class.
func targetClasses(rows []classPair) (l1, l2 map[string]string) {
	s1 := make(map[string]map[string]struct{})
	s2 := make(map[string]map[string]struct{})
	for _, r := range rows {
		if r.a != "" {
			addClass(s1, r.id, r.a)
		}
		if r.b != "" {
			addClass(s2, r.id, r.b)
		}
	}
	for _, set := range s1 {
		if _, ok := set[unclassifiedProtein]; ok && len(set) > 1 {
			delete(set, unclassifiedProtein)
		}
	}
	return joinClasses(s1, "|"), joinClasses(s2, "|")
}

func addClass(sets map[string]map[string]struct{}, id, class string) {
	set, ok := sets[id]
	if !ok {
		set = make(map[string]struct{})
		sets[id] = set
	}
	set[class] = struct{}{}
}

func joinClasses(sets map[string]map[string]struct{}, sep string) map[string]string {
	out := make(map[string]string, len(sets))
	for id, set := range sets {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		out[id] = strings.Join(names, sep)
	}
	return out
}

type compoundRow struct {
	id   string
	info dataset.CompoundInfo
}

func scanCompound(row pgx.CollectableRow) (compoundRow, error) {
	var (
		r                                          compoundRow
		chemblID, prefName                         *string
		maxPhase                                   *float64
		firstApproval, usanYear, blackBox, prodrug *int32
		oral, parenteral, topical                  *int32
		smiles, inchi, inchiKey                    *string
	)
	err := row.Scan(&r.id, &chemblID, &prefName, &maxPhase,
		&firstApproval, &usanYear, &blackBox, &prodrug,
		&oral, &parenteral, &topical,
		&smiles, &inchi, &inchiKey)
	if err != nil {
		return r, err
	}

	r.info = dataset.CompoundInfo{
		ChEMBLID:         deref(chemblID),
		PrefName:         deref(prefName),
		MaxPhase:         nullOf(maxPhase),
		FirstApproval:    nullOf(firstApproval),
		USANYear:         nullOf(usanYear),
		BlackBoxWarning:  nullOf(blackBox),
		Prodrug:          nullOf(prodrug),
		Oral:             nullOf(oral),
		Parenteral:       nullOf(parenteral),
		Topical:          nullOf(topical),
		CanonicalSMILES:  deref(smiles),
		StandardInChI:    deref(inchi),
		StandardInChIKey: deref(inchiKey),
	}
	return r, nil
}

type yearRow struct {
	id   string
	year int32
}

func scanFirstPublication(row pgx.CollectableRow) (yearRow, error) {
	var r yearRow
	err := row.Scan(&r.id, &r.year)
	return r, err
}

func scanClassPair(row pgx.CollectableRow) (classPair, error) {
	var (
		r    classPair
		a, b *string
	)
	if err := row.Scan(&r.id, &a, &b); err != nil {
		return r, err
	}
	r.a, r.b = deref(a), deref(b)
	return r, nil
}

type targetRow struct {
	id   string
	info dataset.TargetInfo
}

func scanTarget(row pgx.CollectableRow) (targetRow, error) {
	var (
		r                                        targetRow
		chemblID, prefName, targetType, organism *string
	)
	if err := row.Scan(&r.id, &chemblID, &prefName, &targetType, &organism); err != nil {
		return r, err
	}
	r.info = dataset.TargetInfo{
		ChEMBLID:   deref(chemblID),
		PrefName:   deref(prefName),
		TargetType: deref(targetType),
		Organism:   deref(organism),
	}
	return r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullOf[T any](v *T) sql.Null[T] {
	if v == nil {
		return sql.Null[T]{}
	}
	return sql.Null[T]{V: *v, Valid: true}
}

func yearDate(year int32) time.Time {
	return time.Date(int(year), time.January, 1, 0, 0, 0, 0, time.UTC)
}
