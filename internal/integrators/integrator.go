package integrators

import (
	"errors"
	"fmt"

	"github.com/san-kum/sdgsim/internal/grid"
)

var ErrUnknown = errors.New("integrators: unknown integrator")

// Rate evaluates d(psi)/dt at time t.
type Rate func(psi grid.Field[complex128], t float64) (grid.Field[complex128], error)

type Integrator interface {
	Name() string
	Step(f Rate, psi grid.Field[complex128], t, dt float64) (grid.Field[complex128], error)
}

func New(name string) (Integrator, error) {
	switch name {
	case "euler":
		return NewEuler(), nil
	case "rk4", "":
		return NewRK4(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
}

func Names() []string { return []string{"euler", "rk4"} }

// axpy writes x + a*y into dst.
func axpy(dst, x, y []complex128, a float64) {
	ac := complex(a, 0)
	for i := range dst {
		dst[i] = x[i] + ac*y[i]
	}
}
