package geometry

import (
	"math"

	"github.com/san-kum/sdgsim/internal/grid"
	"gonum.org/v1/gonum/mat"
)

// VolumeElement returns det g of the full 4x4 metric and sqrt(max(-det g, 0))
// per cell. Nothing in the step consumes it; Solver fills it in when
// Policy.Diagnostics is set.
func VolumeElement(metric *grid.Tensor4[float64]) (det, vol grid.Scalar) {
	det = grid.NewScalar(metric.Shape)
	vol = grid.NewScalar(metric.Shape)
	m := mat.NewDense(4, 4, nil)
	for n := range det.Data {
		for a := 0; a < 4; a++ {
			for b := 0; b < 4; b++ {
				m.Set(a, b, metric.C[a][b][n])
			}
		}
		d := mat.Det(m)
		det.Data[n] = d
		vol.Data[n] = math.Sqrt(math.Max(-d, 0))
	}
	return det, vol
}
