package metrics

import (
	"github.com/san-kum/sdgsim/internal/sim"
)

// Stability is the fraction of observed steps whose state stayed finite
// with density at or below threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(st *sim.State) {
	s.samples++
	if !st.IsValid(s.threshold) {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Standard returns the metrics every run records.
func Standard(threshold float64) []sim.Metric {
	return []sim.Metric{
		NewMass(),
		NewMetricVariance(),
		NewStability(threshold),
		NewDensityDrift(),
	}
}
