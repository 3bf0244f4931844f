package integrators

import "github.com/san-kum/sdgsim/internal/grid"

type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(f Rate, psi grid.Field[complex128], t, dt float64) (grid.Field[complex128], error) {
	d, err := f(psi, t)
	if err != nil {
		return grid.Field[complex128]{}, err
	}
	result := grid.NewField[complex128](psi.Shape)
	axpy(result.Data, psi.Data, d.Data, dt)
	return result, nil
}
