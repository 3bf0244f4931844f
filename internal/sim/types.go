package sim

import (
	"errors"
	"fmt"

	"github.com/san-kum/sdgsim/internal/geometry"
	"github.com/san-kum/sdgsim/internal/grid"
)

var (
	ErrDiverged      = errors.New("sim: state diverged")
	ErrInvalidConfig = errors.New("sim: invalid config")
)

// State is one snapshot of a run. Density is the warm start for the next
// relaxation; Geometry is nil until the first step has been taken.
type State struct {
	Psi      grid.Field[complex128]
	Density  grid.Scalar
	Geometry *geometry.Geometry
	Time     float64
	Step     int
}

// Clone copies the field and density. Geometry is shared; it is never
// mutated after a step produces it.
func (s State) Clone() State {
	c := s
	c.Psi = s.Psi.Clone()
	c.Density = s.Density.Clone()
	return c
}

// IsValid reports whether psi and the density are finite and the density
// stays at or below threshold.
func (s State) IsValid(threshold float64) bool {
	if !s.Psi.IsFinite() || !s.Density.IsFinite() {
		return false
	}
	return s.Density.Max() <= threshold
}

type Metric interface {
	Name() string
	Observe(s *State)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s *State)
}

type Config struct {
	Dt            float64
	Steps         int
	SnapshotEvery int
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            1e-3,
		Steps:         200,
		SnapshotEvery: 10,
		ValidateState: true,
	}
}

type Result struct {
	Final      State
	Snapshots  []State
	Times      []float64
	Mass       []float64
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

// StepError reports a failure at a given step.
type StepError struct {
	Step int
	Time float64
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
