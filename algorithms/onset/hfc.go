package onset

import (
	"math/cmplx"

	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
)

// hfcMasri implements the high frequency content ratio of Masri:
//
//	DF[n] = HFC[n]^2 / (HFC[n-1] * E[n])
//
// where HFC weights the power of bins 1.. by 2, 3, ... and E is the plain
// power sum. Denominators of 1 or less yield 0.
func hfcMasri(spec *spectral.Spectrogram) []float64 {
	numFrames := spec.NumFrames()
	hfc := make([]float64, numFrames)
	df := make([]float64, numFrames)

	for n := 1; n < numFrames; n++ {
		var weighted, energy float64
		for i, bin := range spec.Frames[n][1:] {
			mag := cmplx.Abs(bin)
			power := mag * mag
			weighted += power * float64(i+2)
			energy += power
		}
		hfc[n] = weighted

		denominator := hfc[n-1] * energy
		if denominator > 1 {
			df[n] = (hfc[n] * hfc[n]) / denominator
		}
	}

	return df
}

// weightedHFC sums bin magnitudes 1.. of every frame after the first, with
// bin i+1 weighted by scale(i).
func weightedHFC(spec *spectral.Spectrogram, scale func(i int) float64) []float64 {
	numFrames := spec.NumFrames()
	out := make([]float64, numFrames)

	weights := make([]float64, max(spec.NumBins()-1, 0))
	for i := range weights {
		weights[i] = scale(i)
	}

	for n := 1; n < numFrames; n++ {
		sum := 0.0
		for i, bin := range spec.Frames[n][1:] {
			sum += weights[i] * cmplx.Abs(bin)
		}
		out[n] = sum
	}

	return out
}
