package geometry

import (
	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/grid"
)

// Connection is the spatial geometry derived from a metric field: the 2x2
// block g_ij over the two active axes, its inverse, its coordinate
// derivatives and the Christoffel symbols of the second kind.
//
// Index 0 is grid axis 0 (rows), index 1 is grid axis 1 (cols).
type Connection struct {
	Shape   grid.Shape
	Metric  [2][2]grid.Scalar
	Inverse [2][2]grid.Scalar
	// Deriv[k][i][j] = d_k g_ij
	Deriv [2][2][2]grid.Scalar
	// Gamma[k][i][j] = Gamma^k_ij
	Gamma [2][2][2]grid.Scalar
}

// SpatialBlock slices g[1:3][1:3] out of the full metric without copying.
func SpatialBlock(g *grid.Tensor4[float64]) [2][2]grid.Scalar {
	var b [2][2]grid.Scalar
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			b[i][j] = grid.Component(g, i+1, j+1)
		}
	}
	return b
}

// Christoffel inverts the spatial metric block and derives
//
//	Gamma^k_ij = 1/2 g^kl (d_i g_lj + d_j g_li - d_l g_ij)
//
// The derivatives are those of the periodic piecewise-linear
// reconstruction of g_ij, taken at the integer grid nodes with respect to
// index coordinates. At a node the linear interpolant's derivative is its
// right-hand slope, so d_k g = g(x + e_k) - g(x) with wrap-around.
//
// Determinants are not guarded; a singular block gives Inf/NaN.
func Christoffel(metric *grid.Tensor4[float64], k *compute.Kernel) *Connection {
	k = planFor(k, metric.Shape)
	nb := k.Neighbors
	s := metric.Shape

	c := &Connection{Shape: s, Metric: SpatialBlock(metric)}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			c.Inverse[i][j] = grid.NewScalar(s)
			for l := 0; l < 2; l++ {
				c.Deriv[l][i][j] = grid.NewScalar(s)
				c.Gamma[l][i][j] = grid.NewScalar(s)
			}
		}
	}

	g := c.Metric
	inv := c.Inverse
	k.Each(func(lo, hi int) {
		for n := lo; n < hi; n++ {
			a, b := g[0][0].Data[n], g[0][1].Data[n]
			cc, d := g[1][0].Data[n], g[1][1].Data[n]
			det := a*d - b*cc
			inv[0][0].Data[n] = d / det
			inv[0][1].Data[n] = -b / det
			inv[1][0].Data[n] = -cc / det
			inv[1][1].Data[n] = a / det
		}
	})

	next := [2][]int{nb.Down, nb.Right}
	k.Each(func(lo, hi int) {
		for ax := 0; ax < 2; ax++ {
			for i := 0; i < 2; i++ {
				for j := 0; j < 2; j++ {
					src, dst := g[i][j].Data, c.Deriv[ax][i][j].Data
					for n := lo; n < hi; n++ {
						dst[n] = src[next[ax][n]] - src[n]
					}
				}
			}
		}
	})

	dg := c.Deriv
	k.Each(func(lo, hi int) {
		var term [2][2][2]float64
		for n := lo; n < hi; n++ {
			for l := 0; l < 2; l++ {
				for i := 0; i < 2; i++ {
					for j := 0; j < 2; j++ {
						term[l][i][j] = dg[i][l][j].Data[n] + dg[j][l][i].Data[n] - dg[l][i][j].Data[n]
					}
				}
			}
			for kk := 0; kk < 2; kk++ {
				for i := 0; i < 2; i++ {
					for j := 0; j < 2; j++ {
						sum := 0.0
						for l := 0; l < 2; l++ {
							sum += inv[kk][l].Data[n] * term[l][i][j]
						}
						c.Gamma[kk][i][j].Data[n] = 0.5 * sum
					}
				}
			}
		}
	})
	return c
}
