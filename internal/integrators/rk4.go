package integrators

import "github.com/san-kum/sdgsim/internal/grid"

// RK4 keeps its stage buffers between steps; it is not safe for
// concurrent use.
type RK4 struct {
	k1, k2, k3, k4 []complex128
	scratch        grid.Field[complex128]
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) ensureScratch(s grid.Shape) {
	if r.scratch.Shape != s || len(r.k1) != s.Len() {
		n := s.Len()
		r.k1 = make([]complex128, n)
		r.k2 = make([]complex128, n)
		r.k3 = make([]complex128, n)
		r.k4 = make([]complex128, n)
		r.scratch = grid.NewField[complex128](s)
	}
}

func (r *RK4) stage(f Rate, dst []complex128, x grid.Field[complex128], t float64) error {
	k, err := f(x, t)
	if err != nil {
		return err
	}
	copy(dst, k.Data)
	return nil
}

func (r *RK4) Step(f Rate, psi grid.Field[complex128], t, dt float64) (grid.Field[complex128], error) {
	r.ensureScratch(psi.Shape)

	if err := r.stage(f, r.k1, psi, t); err != nil {
		return grid.Field[complex128]{}, err
	}

	axpy(r.scratch.Data, psi.Data, r.k1, dt*0.5)
	if err := r.stage(f, r.k2, r.scratch, t+dt*0.5); err != nil {
		return grid.Field[complex128]{}, err
	}

	axpy(r.scratch.Data, psi.Data, r.k2, dt*0.5)
	if err := r.stage(f, r.k3, r.scratch, t+dt*0.5); err != nil {
		return grid.Field[complex128]{}, err
	}

	axpy(r.scratch.Data, psi.Data, r.k3, dt)
	if err := r.stage(f, r.k4, r.scratch, t+dt); err != nil {
		return grid.Field[complex128]{}, err
	}

	result := grid.NewField[complex128](psi.Shape)
	dt6 := complex(dt/6.0, 0)
	for i := range result.Data {
		result.Data[i] = psi.Data[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}
	return result, nil
}
