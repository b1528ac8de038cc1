package onset

import (
	"math"
	"math/cmplx"
	"slices"

	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
	"github.com/RyanBlaney/sonido-sync/algorithms/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// histogramBins is the resolution of the per-frame phase deviation histogram.
const histogramBins = 1000

// phaseAcceleration returns the second-order phase difference of every bin,
// princarg(phi[n] - 2 phi[n-1] + phi[n-2]), with phi unwrapped along time.
// Frames 0 and 1 are left at zero.
func phaseAcceleration(spec *spectral.Spectrogram) [][]float64 {
	numFrames := spec.NumFrames()
	bins := spec.NumBins()

	dphi := make([][]float64, numFrames)
	for n := range dphi {
		dphi[n] = make([]float64, bins)
	}
	if numFrames < 3 {
		return dphi
	}

	phi := spectral.UnwrapTime(spec.Phases())
	for n := 2; n < numFrames; n++ {
		for k := range bins {
			dphi[n][k] = spectral.PrincipalArgument(phi[n][k] - 2*phi[n-1][k] + phi[n-2][k])
		}
	}
	return dphi
}

// complexDomain measures, per bin, the distance between the observed value and
// the value predicted from the previous frame's magnitude and a constant phase
// increment, and sums over bins.
func complexDomain(spec *spectral.Spectrogram) []float64 {
	numFrames := spec.NumFrames()
	out := make([]float64, numFrames)
	dphi := phaseAcceleration(spec)

	for n := 2; n < numFrames; n++ {
		sum := 0.0
		for k, bin := range spec.Frames[n] {
			predicted := cmplx.Abs(spec.Frames[n-1][k])
			observed := cmplx.Abs(bin)
			gammaSq := predicted*predicted + observed*observed - 2*predicted*observed*math.Cos(dphi[n][k])
			sum += math.Sqrt(math.Max(0, gammaSq))
		}
		out[n] = sum
	}

	return out
}

// phaseDeviation summarizes each frame's distribution of |phase acceleration|
// by the mean of its density histogram. The first two frames take the median
// of the rest and the whole curve is rescaled to [0, 1].
func phaseDeviation(spec *spectral.Spectrogram) ([]float64, error) {
	numFrames := spec.NumFrames()
	eta := make([]float64, numFrames)
	if numFrames < 3 {
		return eta, nil
	}

	dphi := phaseAcceleration(spec)
	sorted := make([]float64, spec.NumBins())
	dividers := make([]float64, histogramBins+1)
	counts := make([]float64, histogramBins)

	for n := 2; n < numFrames; n++ {
		for k, v := range dphi[n] {
			sorted[k] = math.Abs(v)
		}
		slices.Sort(sorted)
		eta[n] = histogramDensityMean(sorted, dividers, counts)
	}

	median, err := stats.Median(eta[2:])
	if err != nil {
		return nil, err
	}
	eta[0] = median
	eta[1] = median

	floats.AddConst(-floats.Min(eta), eta)
	if peak := floats.Max(eta); peak > 0 {
		floats.Scale(1/peak, eta)
	}

	return eta, nil
}

// histogramDensityMean bins sorted values into len(counts) equal bins over
// their range and returns the mean bin density. A zero range is widened by 0.5
// on each side.
func histogramDensityMean(sorted, dividers, counts []float64) float64 {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		lo -= 0.5
		hi += 0.5
	}

	floats.Span(dividers, lo, hi)
	// the top edge is inclusive
	dividers[len(dividers)-1] = math.Nextafter(hi, math.Inf(1))

	for i := range counts {
		counts[i] = 0
	}
	stat.Histogram(counts, dividers, sorted, nil)

	width := (hi - lo) / float64(len(counts))
	floats.Scale(1/(float64(len(sorted))*width), counts)
	return stat.Mean(counts, nil)
}
