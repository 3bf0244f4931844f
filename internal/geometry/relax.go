package geometry

import (
	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/grid"
)

// Relax runs exactly iterations sweeps of weighted Jacobi on the periodic
// Poisson problem lap(x) = -source:
//
//	x_new = (up + down + left + right + source*dx^2) / 4
//	x     = (1-omega)*x + omega*x_new
//
// There is no convergence test, so the cost is fixed per call. guess is not
// modified and the result is not clipped.
func Relax(source, guess grid.Scalar, dx float64, iterations int, omega float64, k *compute.Kernel) grid.Scalar {
	k = planFor(k, guess.Shape)
	nb := k.Neighbors
	d2 := dx * dx

	x := guess.Clone()
	next := grid.NewScalar(guess.Shape)
	for it := 0; it < iterations; it++ {
		cur, dst := x.Data, next.Data
		k.Each(func(lo, hi int) {
			for i := lo; i < hi; i++ {
				xn := (cur[nb.Up[i]] + cur[nb.Down[i]] + cur[nb.Left[i]] + cur[nb.Right[i]] + source.Data[i]*d2) / 4.0
				dst[i] = (1.0-omega)*cur[i] + omega*xn
			}
		})
		x, next = next, x
	}
	return x
}
