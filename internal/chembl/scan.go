package chembl

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/jackc/pgx/v5"
)

func scanMeasurement(row pgx.CollectableRow) (dataset.RawMeasurement, error) {
	var (
		m                   dataset.RawMeasurement
		potency             *float64
		year                *int32
		assayType           *string
		mutation, accession *string
	)
	if err := row.Scan(&m.CompoundID, &m.TargetID, &potency, &year, &m.Literature, &assayType, &mutation, &accession); err != nil {
		return m, err
	}

	if potency != nil {
		m.Potency = sql.Null[float64]{V: *potency, Valid: true}
	}
	if year != nil {
		m.EvidenceDate = sql.Null[time.Time]{V: yearDate(*year), Valid: true}
	}
	if assayType != nil {
		m.AssayType = dataset.AssayType(*assayType)
	}
	if mutation != nil {
		m.Variant = &dataset.Variant{Mutation: *mutation}
		if accession != nil {
			m.Variant.Accession = *accession
		}
	}
	return m, nil
}

func scanMechanism(row pgx.CollectableRow) (dataset.MechanismRecord, error) {
	var (
		r        dataset.MechanismRecord
		maxPhase *float64
	)
	if err := row.Scan(&r.CompoundID, &r.TargetID, &maxPhase, &r.DiseaseRelevant); err != nil {
		return r, err
	}

	raw := -1.0
	if maxPhase != nil {
		raw = *maxPhase
	}
	phase, err := dataset.ParsePhase(raw)
	if err != nil {
		return r, fmt.Errorf("mechanism %s_%s: %w", r.CompoundID, r.TargetID, err)
	}
	r.MaxPhase = phase
	return r, nil
}

func scanRelation(row pgx.CollectableRow) (dataset.TargetRelation, error) {
	var (
		r                dataset.TargetRelation
		relationship     string
		fromType, toType string
	)
	if err := row.Scan(&r.TargetID, &r.RelatedID, &relationship, &fromType, &toType); err != nil {
		return r, err
	}
	r.Kind = relationKind(relationship, fromType, toType)
	return r, nil
}

type descriptorRow struct {
	compoundID  string
	descriptors dataset.Descriptors
}

func scanDescriptors(row pgx.CollectableRow) (descriptorRow, error) {
	values := make([]*float64, len(DescriptorColumns))
	dest := make([]any, 0, len(values)+1)

	var r descriptorRow
	dest = append(dest, &r.compoundID)
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := row.Scan(dest...); err != nil {
		return r, err
	}

	r.descriptors = make(dataset.Descriptors, len(values))
	for i, v := range values {
		if v != nil {
			r.descriptors[DescriptorColumns[i]] = *v
		}
	}
	return r, nil
}
