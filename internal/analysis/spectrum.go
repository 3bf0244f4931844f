package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// HannSpectrum returns the magnitudes of the first len(x)/2 DFT bins of x
// after a symmetric Hann window. Bin k is wavenumber k.
func HannSpectrum(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	w := window.Hann(n)
	windowed := make([]float64, n)
	for i := range x {
		windowed[i] = x[i] * w[i]
	}

	spec := fft.FFTReal(windowed)
	mag := make([]float64, n/2)
	for k := range mag {
		mag[k] = cmplx.Abs(spec[k])
	}
	return mag
}

// FindPeaks returns the indices of the local maxima of x whose value is at
// least height. A peak must rise strictly above its left neighbour and fall
// strictly below on the right; a flat top reports its midpoint (rounded
// down). The first and last samples are never peaks.
func FindPeaks(x []float64, height float64) []int {
	var peaks []int
	last := len(x) - 1
	i := 1
	for i < last {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < last && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				mid := (i + ahead - 1) / 2
				if x[mid] >= height {
					peaks = append(peaks, mid)
				}
				i = ahead
				continue
			}
		}
		i++
	}
	return peaks
}
