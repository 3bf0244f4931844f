package geometry

import (
	"github.com/san-kum/sdgsim/internal/compute"
	"github.com/san-kum/sdgsim/internal/grid"
)

// planFor returns k when it matches s, otherwise a one-off serial kernel.
func planFor(k *compute.Kernel, s grid.Shape) *compute.Kernel {
	if k != nil && k.Shape() == s {
		return k
	}
	return compute.NewKernel(compute.Key{Rows: s.Rows, Cols: s.Cols, Iterations: 1}, compute.NewSerialBackend())
}

// centralDiffC is the periodic central difference along one axis,
// (f[i+1] - f[i-1]) / (2h), divided component-wise.
func centralDiffC(dst, src []complex128, prev, next []int, h float64, lo, hi int) {
	d := 2 * h
	for i := lo; i < hi; i++ {
		v := src[next[i]] - src[prev[i]]
		dst[i] = complex(real(v)/d, imag(v)/d)
	}
}
