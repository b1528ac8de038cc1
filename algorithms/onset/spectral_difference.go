package onset

import (
	"math"

	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
	"gonum.org/v1/gonum/stat"
)

// spectralDistance is the squared, half-wave rectified magnitude increase
// between consecutive frames, summed over bins.
func spectralDistance(spec *spectral.Spectrogram) []float64 {
	mags := spec.Magnitudes()
	out := make([]float64, len(mags))

	for n := 1; n < len(mags); n++ {
		sum := 0.0
		for k, mag := range mags[n] {
			diff := mag - mags[n-1][k]
			if diff > 0 {
				sum += diff * diff
			}
		}
		out[n] = sum
	}

	return out
}

// klDivergence takes, per frame, the mean over bins of the modified
// Kullback-Leibler term |X[n]| * log(1 + |X[n]| / (|X[n-1]| + eps)).
func klDivergence(spec *spectral.Spectrogram) []float64 {
	mags := spec.Magnitudes()
	out := make([]float64, len(mags))

	terms := make([]float64, spec.NumBins())
	for n := 1; n < len(mags); n++ {
		for k, mag := range mags[n] {
			terms[k] = mag * math.Log(1.0+mag/(mags[n-1][k]+epsilon))
		}
		out[n] = stat.Mean(terms, nil)
	}

	return out
}
