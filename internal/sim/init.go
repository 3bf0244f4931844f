package sim

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/san-kum/sdgsim/internal/grid"
)

var ErrUnknownInit = errors.New("sim: unknown initial field")

// InitKinds lists the profiles InitialField accepts.
var InitKinds = []string{"uniform", "wave", "gaussian", "vortex", "noise"}

// InitialField builds psi at t=0. "uniform" and "wave" vary along at most
// the row axis; the others vary in both directions.
func InitialField(kind string, s grid.Shape, seed int64) (grid.Field[complex128], error) {
	if !s.Valid() {
		return grid.Field[complex128]{}, fmt.Errorf("%w: %v", grid.ErrEmptyGrid, s)
	}
	psi := grid.NewField[complex128](s)
	rows, cols := float64(s.Rows), float64(s.Cols)
	cy, cx := rows/2, cols/2

	switch kind {
	case "uniform":
		psi.Fill(1)

	case "wave":
		for r := 0; r < s.Rows; r++ {
			y := 2 * math.Pi * float64(r) / rows
			v := complex(1+0.3*math.Sin(y), 0) * cmplx.Exp(complex(0, 2*y))
			for c := 0; c < s.Cols; c++ {
				psi.Set(r, c, v)
			}
		}

	case "gaussian":
		sigma := math.Max(rows, cols) / 8
		for r := 0; r < s.Rows; r++ {
			for c := 0; c < s.Cols; c++ {
				dy, dx := float64(r)-cy, float64(c)-cx
				amp := 1 + math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
				phase := 2 * math.Pi * 3 * float64(c) / cols
				psi.Set(r, c, complex(amp, 0)*cmplx.Exp(complex(0, phase)))
			}
		}

	case "vortex":
		core := math.Max(rows, cols) / 16
		for r := 0; r < s.Rows; r++ {
			for c := 0; c < s.Cols; c++ {
				dy, dx := float64(r)-cy+0.5, float64(c)-cx+0.5
				amp := math.Tanh(math.Hypot(dx, dy) / core)
				psi.Set(r, c, complex(amp, 0)*cmplx.Exp(complex(0, math.Atan2(dy, dx))))
			}
		}

	case "noise":
		rng := rand.New(rand.NewSource(seed))
		for i := range psi.Data {
			psi.Data[i] = complex(1+0.1*rng.NormFloat64(), 0.1*rng.NormFloat64())
		}

	default:
		return grid.Field[complex128]{}, fmt.Errorf("%w: %q", ErrUnknownInit, kind)
	}
	return psi, nil
}
