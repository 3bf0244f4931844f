package geometry

// Fixed policy defaults. They are deliberate choices, not derived values.
const (
	DefaultRelaxIterations     = 50
	DefaultRelaxOmega          = 1.8
	DefaultDiffusionPhase      = 0.5 + 0.8i
	DefaultDivergenceThreshold = 1e6
	DefaultDensityFloor        = 1e-6
	DefaultSqrtFloor           = 1e-9
)

// MinkowskiSignature is diag(-1, +1, +1, +1).
var MinkowskiSignature = [4]float64{-1, 1, 1, 1}

// Policy carries the overridable constants of the pipeline.
type Policy struct {
	RelaxIterations     int
	RelaxOmega          float64
	DiffusionPhase      complex128
	DivergenceThreshold float64
	DensityFloor        float64
	SqrtFloor           float64
	Signature           [4]float64
	// Diagnostics enables the determinant / volume element output.
	Diagnostics bool
}

func DefaultPolicy() Policy {
	return Policy{
		RelaxIterations:     DefaultRelaxIterations,
		RelaxOmega:          DefaultRelaxOmega,
		DiffusionPhase:      DefaultDiffusionPhase,
		DivergenceThreshold: DefaultDivergenceThreshold,
		DensityFloor:        DefaultDensityFloor,
		SqrtFloor:           DefaultSqrtFloor,
		Signature:           MinkowskiSignature,
	}
}

// Params are the run-time coupling constants of one step.
type Params struct {
	Kappa   float64 `json:"kappa"`
	Eta     float64 `json:"eta"`
	Alpha   float64 `json:"alpha"`
	RhoVac  float64 `json:"rho_vac"`
	Epsilon float64 `json:"epsilon"`
}
