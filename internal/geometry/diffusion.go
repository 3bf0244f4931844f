package geometry

import (
	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/grid"
)

type derivatives struct {
	grad [2][]complex128
	hess [2][2][]complex128
}

// differentiate builds the periodic central-difference gradient of psi and
// its Hessian by applying the same operator to each gradient component, so
// hess[i][j] = d_j(d_i psi).
func differentiate[C grid.Complex](psi grid.Field[C], dx float64, k *compute.Kernel) *derivatives {
	nb := k.Neighbors
	n := psi.Len()

	z := make([]complex128, n)
	for i, v := range psi.Data {
		z[i] = complex128(v)
	}

	d := &derivatives{}
	for i := 0; i < 2; i++ {
		d.grad[i] = make([]complex128, n)
		for j := 0; j < 2; j++ {
			d.hess[i][j] = make([]complex128, n)
		}
	}

	k.Each(func(lo, hi int) {
		for ax := 0; ax < 2; ax++ {
			prev, next := nb.Along(ax)
			centralDiffC(d.grad[ax], z, prev, next, dx, lo, hi)
		}
	})
	k.Each(func(lo, hi int) {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				prev, next := nb.Along(j)
				centralDiffC(d.hess[i][j], d.grad[i], prev, next, dx, lo, hi)
			}
		}
	})
	return d
}

// Diffuse applies the covariant diffusion operator to psi:
//
//	eps * phase * (g^ij H_ij - g^ij Gamma^k_ij d_k psi)
//
// where H is the Hessian of psi and phase is Policy.DiffusionPhase
// (0.5+0.8i by default: real part diffusive, imaginary part dispersive).
// The result is a rate of change; integrating it is the caller's job.
func Diffuse[C grid.Complex](psi grid.Field[C], epsilon, dx float64, conn *Connection, p Policy, k *compute.Kernel) grid.Field[C] {
	k = planFor(k, psi.Shape)
	d := differentiate(psi, dx, k)
	inv, gamma := conn.Inverse, conn.Gamma
	coef := complex(epsilon*real(p.DiffusionPhase), epsilon*imag(p.DiffusionPhase))

	out := grid.NewField[C](psi.Shape)
	k.Each(func(lo, hi int) {
		for n := lo; n < hi; n++ {
			var lap, corr complex128
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					gij := inv[i][j].Data[n]
					lap += complex(gij, 0) * d.hess[i][j][n]
					for kk := 0; kk < 2; kk++ {
						corr += complex(gij*gamma[kk][i][j].Data[n], 0) * d.grad[kk][n]
					}
				}
			}
			out.Data[n] = C(coef * (lap - corr))
		}
	})
	return out
}

// CovariantDiffusion derives the connection from metric and applies Diffuse.
func CovariantDiffusion[C grid.Complex](psi grid.Field[C], epsilon float64, metric *grid.Tensor4[float64], dx float64, p Policy, k *compute.Kernel) grid.Field[C] {
	k = planFor(k, psi.Shape)
	return Diffuse(psi, epsilon, dx, Christoffel(metric, k), p, k)
}

// Laplacian is the flat discrete Laplacian built from the same composed
// central differences as Diffuse (H_00 + H_11).
func Laplacian[C grid.Complex](psi grid.Field[C], dx float64, k *compute.Kernel) grid.Field[C] {
	k = planFor(k, psi.Shape)
	d := differentiate(psi, dx, k)
	out := grid.NewField[C](psi.Shape)
	for n := range out.Data {
		out.Data[n] = C(d.hess[0][0][n] + d.hess[1][1][n])
	}
	return out
}
