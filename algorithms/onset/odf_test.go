package onset

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantSpectrogram(frames, bins int, value complex128) *spectral.Spectrogram {
	out := make([][]complex128, frames)
	for n := range out {
		out[n] = make([]complex128, bins)
		for k := range out[n] {
			out[n][k] = value
		}
	}
	return &spectral.Spectrogram{Frames: out, FrameSize: 2 * (bins - 1), HopSize: 512, SampleRate: 44100}
}

func randomSpectrogram(frames, bins int, seed int64) *spectral.Spectrogram {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]complex128, frames)
	for n := range out {
		out[n] = make([]complex128, bins)
		for k := range out[n] {
			out[n][k] = cmplx.Rect(rng.Float64()*3, (rng.Float64()*2-1)*math.Pi)
		}
	}
	return &spectral.Spectrogram{Frames: out, FrameSize: 2 * (bins - 1), HopSize: 256, SampleRate: 22050}
}

func assertFinite(t *testing.T, alg Algorithm, values []float64) {
	t.Helper()
	for i, v := range values {
		require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s produced %v at frame %d", alg, v, i)
	}
}

func TestZeroSpectrogramYieldsZeros(t *testing.T) {
	spec := constantSpectrogram(5, 513, 0)
	for _, alg := range Algorithms {
		out, err := Compute(spec, alg, 44100)
		require.NoError(t, err, alg.String())
		require.Len(t, out, 5, alg.String())
		assertFinite(t, alg, out)
		for i, v := range out {
			assert.Equal(t, 0.0, v, "%s frame %d", alg, i)
		}
	}
}

func TestOutputLengthMatchesFrameCount(t *testing.T) {
	spec := randomSpectrogram(37, 129, 1)
	for _, alg := range Algorithms {
		out, err := Compute(spec, alg, 22050)
		require.NoError(t, err, alg.String())
		assert.Len(t, out, 37, alg.String())
		assertFinite(t, alg, out)
	}
}

func TestLeadingFramesAreDefined(t *testing.T) {
	spec := randomSpectrogram(20, 65, 2)
	for _, alg := range []Algorithm{HFCMasri, HFCJensen, HFCMasriBello, SpectralDistance, KLDivergence, MelDifference} {
		out, err := Compute(spec, alg, 22050)
		require.NoError(t, err)
		assert.Equal(t, 0.0, out[0], alg.String())
	}

	out, err := Compute(spec, ComplexDomain, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[0])
	assert.Equal(t, 0.0, out[1])
}

func TestSpectralDistanceIsNonNegative(t *testing.T) {
	for seed := int64(0); seed < 5; seed++ {
		out, err := Compute(randomSpectrogram(50, 65, seed), SpectralDistance, 0)
		require.NoError(t, err)
		for i, v := range out {
			assert.GreaterOrEqual(t, v, 0.0, "frame %d", i)
		}
	}
}

func TestHFCMasriIsNonNegative(t *testing.T) {
	out, err := Compute(randomSpectrogram(50, 65, 9), HFCMasri, 0)
	require.NoError(t, err)
	for i, v := range out {
		assert.GreaterOrEqual(t, v, 0.0, "frame %d", i)
	}
	// HFC of frame 0 is never formed, so frame 1 always has a zero denominator
	assert.Equal(t, 0.0, out[1])
}

func TestHFCMasriSubUnityDenominator(t *testing.T) {
	// bin 1 magnitude 0.1 gives power 0.01, HFC 0.02 and denominators of 0.0002
	spec := constantSpectrogram(6, 3, 0)
	for n := range spec.Frames {
		spec.Frames[n][1] = 0.1
	}
	out, err := Compute(spec, HFCMasri, 0)
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, 0.0, v, "frame %d", i)
	}

	// with magnitude 10 the denominator exceeds 1 and the ratio is HFC/E = 2
	for n := range spec.Frames {
		spec.Frames[n][1] = 10
	}
	out, err = Compute(spec, HFCMasri, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[1])
	for n := 2; n < len(out); n++ {
		assert.InDelta(t, 2.0, out[n], 1e-9)
	}
}

func TestHFCWeightings(t *testing.T) {
	spec := constantSpectrogram(3, 4, 1)
	jensen, err := Compute(spec, HFCJensen, 0)
	require.NoError(t, err)
	bello, err := Compute(spec, HFCMasriBello, 0)
	require.NoError(t, err)

	// bins 1..3 weighted 1,4,9 and 2,3,4
	assert.Equal(t, []float64{0, 14, 14}, jensen)
	assert.Equal(t, []float64{0, 9, 9}, bello)
}

func TestConstantFramesHaveNoNovelty(t *testing.T) {
	spec := constantSpectrogram(100, 513, 1)
	for _, alg := range []Algorithm{SpectralDistance, ComplexDomain, PhaseDeviation, MelDifference} {
		out, err := Compute(spec, alg, 44100)
		require.NoError(t, err)
		require.Len(t, out, 100)
		for i, v := range out {
			assert.InDelta(t, 0.0, v, 1e-9, "%s frame %d", alg, i)
		}
	}
}

func TestSingleLoudFrameSpikesOnce(t *testing.T) {
	spec := constantSpectrogram(100, 513, 0)
	for k := range spec.Frames[50] {
		spec.Frames[50][k] = 1
	}

	for _, alg := range []Algorithm{KLDivergence, SpectralDistance} {
		out, err := Compute(spec, alg, 44100)
		require.NoError(t, err)
		for i, v := range out {
			if i == 50 {
				assert.Greater(t, v, 0.0, "%s spike", alg)
			} else {
				assert.Equal(t, 0.0, v, "%s frame %d", alg, i)
			}
		}
	}
}

func TestComplexDomainFollowsSteadyPhase(t *testing.T) {
	// constant magnitude with a constant phase advance is perfectly predicted
	frames := make([][]complex128, 12)
	for n := range frames {
		frames[n] = []complex128{cmplx.Rect(2, 0.9*float64(n)), cmplx.Rect(1, -1.3*float64(n))}
	}
	spec := &spectral.Spectrogram{Frames: frames}

	out, err := Compute(spec, ComplexDomain, 0)
	require.NoError(t, err)
	for i, v := range out {
		assert.InDelta(t, 0.0, v, 1e-6, "frame %d", i)
	}

	// a phase jump breaks the prediction
	frames[8][0] = cmplx.Rect(2, 0.9*8+2.0)
	out, err = Compute(spec, ComplexDomain, 0)
	require.NoError(t, err)
	assert.Greater(t, out[8], 1.0)
}

func TestPhaseDeviationIsNormalized(t *testing.T) {
	out, err := Compute(randomSpectrogram(40, 257, 4), PhaseDeviation, 0)
	require.NoError(t, err)

	lo, hi := out[0], out[0]
	for _, v := range out {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	assert.InDelta(t, 0.0, lo, 1e-12)
	assert.InDelta(t, 1.0, hi, 1e-12)
	assert.Equal(t, out[0], out[1])
}

func TestShortSpectrograms(t *testing.T) {
	spec := randomSpectrogram(2, 17, 5)
	for _, alg := range Algorithms {
		out, err := Compute(spec, alg, 8000)
		require.NoError(t, err, alg.String())
		assert.Len(t, out, 2)
		assertFinite(t, alg, out)
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	_, err := Compute(nil, SpectralDistance, 0)
	assert.Error(t, err)

	ragged := &spectral.Spectrogram{Frames: [][]complex128{{1, 2}, {1}}}
	_, err = Compute(ragged, SpectralDistance, 0)
	assert.Error(t, err)

	_, err = Compute(constantSpectrogram(3, 3, 0), Algorithm(99), 0)
	assert.Error(t, err)

	_, err = Compute(constantSpectrogram(3, 1, 0), MelDifference, 0)
	assert.Error(t, err)
}

func TestAlgorithmNamesRoundTrip(t *testing.T) {
	for _, alg := range Algorithms {
		parsed, err := ParseAlgorithm(alg.String())
		require.NoError(t, err)
		assert.Equal(t, alg, parsed)
	}
	_, err := ParseAlgorithm("energy")
	assert.Error(t, err)

	var a Algorithm
	require.NoError(t, a.UnmarshalText([]byte("klDivergence")))
	assert.Equal(t, KLDivergence, a)
}

func TestHistogramDensityMeanRange(t *testing.T) {
	dividers := make([]float64, 1001)
	counts := make([]float64, 1000)

	// one density unit spread over the widened [0.5, 1.5]
	assert.InDelta(t, 1.0, histogramDensityMean([]float64{1, 1}, dividers, counts), 1e-9)

	// a tiny but non-zero spread is binned as is
	lo, hi := 1.0, 1.0+1e-11
	got := histogramDensityMean([]float64{lo, hi}, dividers, counts)
	assert.InEpsilon(t, 1/(hi-lo), got, 1e-9)
}
