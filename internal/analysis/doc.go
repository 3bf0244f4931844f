// Package analysis extracts spectral structure from density fields.
//
// A density is sampled along a few straight rays ([Rays]), each ray is
// Hann-windowed and transformed ([HannSpectrum]), and the local maxima of
// the magnitude spectrum ([FindPeaks]) are compared against the natural
// logarithms of the first ten primes ([LogPrimeTargets]):
//
//	rays, err := analysis.Rays(dims, rho)
//	if err != nil {
//	    return err
//	}
//	sse := analysis.SpectralFidelity(rays)
//
// Each ray's wavenumbers are rescaled so that its strongest peak sits on
// ln 2, and the squared distances to the nearest target are summed. Lower
// is better; a field with no usable peaks scores [NoPeaksPenalty].
package analysis
