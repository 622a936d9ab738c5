package pipeline

import (
	"context"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
)

// MeasurementSource delivers raw activity rows.
type MeasurementSource interface {
	// Measurements returns the activity rows. With literatureOnly set the
	// source may restrict itself to literature rows; the aggregator applies
	// the restriction regardless.
	Measurements(ctx context.Context, literatureOnly bool) ([]dataset.RawMeasurement, error)
}

// MechanismSource delivers documented mechanisms and target relationships.
type MechanismSource interface {
	Mechanisms(ctx context.Context) ([]dataset.MechanismRecord, error)
	TargetRelations(ctx context.Context) ([]dataset.TargetRelation, error)
}

// Enricher supplies descriptors and reference metadata for the compounds
// and targets of a run. Annotations pass through the pipeline unmodified.
type Enricher interface {
	Enrich(ctx context.Context, req dataset.AnnotationRequest) (*dataset.Annotations, error)
}

// Sources bundles the inputs of a build. Enricher is optional.
type Sources struct {
	Measurements MeasurementSource
	Mechanisms   MechanismSource
	Enricher     Enricher
}
