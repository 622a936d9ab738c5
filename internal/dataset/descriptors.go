package dataset

import "math"

// Descriptors are compound-level columns supplied by an external
// cheminformatics step. They pass through the pipeline unmodified.
// A missing key means the value is undefined.
type Descriptors map[string]float64

// Descriptor column names used by the pipeline itself.
const (
	DescHeavyAtoms = "heavy_atoms"
	DescMWFreebase = "mw_freebase"
	DescPSA        = "psa"
	DescALogP      = "alogp"
)

// IntegralDescriptors are descriptor columns that must hold whole numbers.
var IntegralDescriptors = []string{
	"hba",
	"hbd",
	"rtb",
	"num_ro5_violations",
	"aromatic_rings",
	DescHeavyAtoms,
	"hba_lipinski",
	"hbd_lipinski",
	"num_lipinski_ro5_violations",
}

// Get returns the value for name and whether it is defined.
func (d Descriptors) Get(name string) (float64, bool) {
	if d == nil {
		return 0, false
	}
	v, ok := d[name]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
