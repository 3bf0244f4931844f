package metrics

import (
	"math"

	"github.com/san-kum/sdgsim/internal/sim"
)

// Mass reports the mean |psi|^2 of the last observed state.
type Mass struct {
	name    string
	current float64
	samples int
}

func NewMass() *Mass {
	return &Mass{name: "mass"}
}

func (m *Mass) Name() string { return m.name }

func (m *Mass) Observe(s *sim.State) {
	m.current = s.Psi.Density().Mean()
	m.samples++
}

func (m *Mass) Value() float64 {
	return m.current
}

func (m *Mass) Reset() {
	m.current = 0
	m.samples = 0
}

// DensityDrift is the largest relative departure of the mean relaxed
// density from its first observed value.
type DensityDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewDensityDrift() *DensityDrift {
	return &DensityDrift{name: "density_drift"}
}

func (d *DensityDrift) Name() string { return d.name }

func (d *DensityDrift) Observe(s *sim.State) {
	mean := s.Density.Mean()
	if d.samples == 0 {
		d.initial = mean
	}
	d.samples++

	if d.initial != 0 {
		drift := math.Abs(mean-d.initial) / math.Abs(d.initial)
		if math.IsNaN(drift) {
			drift = math.Inf(1)
		}
		d.maxDrift = math.Max(d.maxDrift, drift)
	}
}

func (d *DensityDrift) Value() float64 {
	return d.maxDrift
}

func (d *DensityDrift) Reset() {
	d.initial = 0
	d.maxDrift = 0
	d.samples = 0
}
