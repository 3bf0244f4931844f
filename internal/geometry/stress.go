package geometry

import (
	"math"

	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/grid"
)

// StressEnergy returns the informational stress-energy tensor of psi.
//
// T00 = kappa*rho*|grad phi|^2 + eta*|grad sqrt(rho)|^2 with rho = |psi|^2
// and phi = arg(psi). Gradients are periodic central differences in grid
// index units. Only [0][0] is populated; the other components are zero and
// the element type follows the field's precision.
func StressEnergy[C grid.Complex](psi grid.Field[C], kappa, eta float64, p Policy, k *compute.Kernel) *grid.Tensor4[C] {
	k = planFor(k, psi.Shape)
	nb := k.Neighbors
	n := psi.Len()

	rho := make([]float64, n)
	phi := make([]float64, n)
	amp := make([]float64, n)
	k.Each(func(lo, hi int) {
		for i := lo; i < hi; i++ {
			z := complex128(psi.Data[i])
			re, im := real(z), imag(z)
			rho[i] = re*re + im*im
			phi[i] = math.Atan2(im, re)
			amp[i] = math.Sqrt(math.Max(rho[i], p.SqrtFloor))
		}
	})

	t := grid.NewTensor4[C](psi.Shape)
	t00 := t.C[0][0]
	k.Each(func(lo, hi int) {
		for i := lo; i < hi; i++ {
			phiY := (phi[nb.Down[i]] - phi[nb.Up[i]]) / 2
			phiX := (phi[nb.Right[i]] - phi[nb.Left[i]]) / 2
			ampY := (amp[nb.Down[i]] - amp[nb.Up[i]]) / 2
			ampX := (amp[nb.Right[i]] - amp[nb.Left[i]]) / 2
			v := kappa*rho[i]*(phiX*phiX+phiY*phiY) + eta*(ampX*ampX+ampY*ampY)
			t00[i] = C(complex(v, 0))
		}
	})
	return t
}

// EnergyDensity extracts the real part of T00 as the relaxation source.
func EnergyDensity[C grid.Complex](t *grid.Tensor4[C]) grid.Scalar {
	s := grid.NewScalar(t.Shape)
	for i, v := range t.C[0][0] {
		s.Data[i] = real(complex128(v))
	}
	return s
}
