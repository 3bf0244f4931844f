package geometry

import (
	"math"

	"github.com/san-kum/sdgsim/internal/grid"
)

// Assemble clips rho at the density floor and builds the conformal metric
// g[a][b] = signature[a][b] * (rhoVac/rho)^alpha.
//
// The scale is not bounded: an (alpha, rhoVac) pair that drives it to zero
// or overflow yields a singular or non-finite metric.
func Assemble(rho grid.Scalar, alpha, rhoVac float64, p Policy) (grid.Scalar, *grid.Tensor4[float64]) {
	clipped := rho.Clip(p.DensityFloor)

	var eta [4][4]float64
	for a := 0; a < 4; a++ {
		eta[a][a] = p.Signature[a]
	}

	g := grid.NewTensor4[float64](rho.Shape)
	for i, r := range clipped.Data {
		scale := math.Pow(rhoVac/r, alpha)
		for a := 0; a < 4; a++ {
			for b := 0; b < 4; b++ {
				g.C[a][b][i] = eta[a][b] * scale
			}
		}
	}
	return clipped, g
}

// ConformalScale recovers the per-cell scale from g[1][1].
func ConformalScale(g *grid.Tensor4[float64], p Policy) grid.Scalar {
	s := grid.NewScalar(g.Shape)
	for i, v := range g.C[1][1] {
		s.Data[i] = v / p.Signature[1]
	}
	return s
}
