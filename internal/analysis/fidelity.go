package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// PeakFraction is the minimum peak height relative to the ray's
	// largest magnitude.
	PeakFraction = 0.1
	// NoPeaksPenalty is the score when no ray yields a peak.
	NoPeaksPenalty = 100.0
	anchorEpsilon  = 1e-9
)

var ErrRank = errors.New("analysis: rays need a rank-2 or rank-3 field")

var firstPrimes = []float64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}

// LogPrimeTargets returns ln p for the first ten primes.
func LogPrimeTargets() []float64 {
	out := make([]float64, len(firstPrimes))
	for i, p := range firstPrimes {
		out[i] = math.Log(p)
	}
	return out
}

// Rays samples a row-major field along the centre line of every axis and
// along the main diagonal. dims must have two or three entries.
func Rays(dims []int, data []float64) ([][]float64, error) {
	n := 1
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: dims %v", ErrRank, dims)
		}
		n *= d
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d values for dims %v", ErrRank, len(data), dims)
	}

	switch len(dims) {
	case 2:
		rows, cols := dims[0], dims[1]
		at := func(r, c int) float64 { return data[r*cols+c] }
		cr, cc := rows/2, cols/2

		down := make([]float64, rows)
		for r := range down {
			down[r] = at(r, cc)
		}
		across := make([]float64, cols)
		for c := range across {
			across[c] = at(cr, c)
		}
		diag := make([]float64, min(rows, cols))
		for i := range diag {
			diag[i] = at(i, i)
		}
		return [][]float64{down, across, diag}, nil

	case 3:
		nx, ny, nz := dims[0], dims[1], dims[2]
		at := func(i, j, k int) float64 { return data[(i*ny+j)*nz+k] }
		cx, cy, cz := nx/2, ny/2, nz/2

		rx := make([]float64, nx)
		for i := range rx {
			rx[i] = at(i, cy, cz)
		}
		ry := make([]float64, ny)
		for j := range ry {
			ry[j] = at(cx, j, cz)
		}
		rz := make([]float64, nz)
		for k := range rz {
			rz[k] = at(cx, cy, k)
		}
		diag := make([]float64, min(nx, ny, nz))
		for i := range diag {
			diag[i] = at(i, i, i)
		}
		return [][]float64{rx, ry, rz, diag}, nil
	}
	return nil, fmt.Errorf("%w: rank %d", ErrRank, len(dims))
}

// RaySSE scores a single ray. ok is false when the ray has no peaks.
func RaySSE(ray []float64, targets []float64) (sse float64, ok bool) {
	power := HannSpectrum(ray)
	if len(power) == 0 {
		return 0, false
	}
	peaks := FindPeaks(power, floats.Max(power)*PeakFraction)
	if len(peaks) == 0 {
		return 0, false
	}

	// Anchor the strongest peak (first on ties) to ln 2.
	strongest := peaks[0]
	for _, p := range peaks[1:] {
		if power[p] > power[strongest] {
			strongest = p
		}
	}
	alpha := float64(strongest) / targets[0]

	for _, p := range peaks {
		k := float64(p) / (alpha + anchorEpsilon)
		d := math.Inf(1)
		for _, t := range targets {
			d = math.Min(d, math.Abs(k-t))
		}
		sse += d * d
	}
	return sse, true
}

// SpectralFidelity is the mean RaySSE over rays that have peaks, or
// NoPeaksPenalty when none do.
func SpectralFidelity(rays [][]float64) float64 {
	targets := LogPrimeTargets()
	total := 0.0
	valid := 0
	for _, ray := range rays {
		sse, ok := RaySSE(ray, targets)
		if !ok {
			continue
		}
		total += sse
		valid++
	}
	if valid == 0 {
		return NoPeaksPenalty
	}
	return total / float64(valid)
}
