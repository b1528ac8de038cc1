package onset

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
	"gonum.org/v1/gonum/stat"
)

// melBands is the number of mel filters used by the mel-difference function.
const melBands = 40

// melDifference projects magnitudes onto mel bands, takes the log, and averages
// the rectified frame-to-frame increase over bands. Value n compares frames n
// and n-1; frame 0 is zero.
func melDifference(spec *spectral.Spectrogram, sampleRate int) ([]float64, error) {
	fftSize := 2 * (spec.NumBins() - 1)
	if fftSize <= 0 {
		return nil, fmt.Errorf("%s: need at least 2 frequency bins, got %d", MelDifference, spec.NumBins())
	}

	bank, err := spectral.NewMelFilterBank(melBands, fftSize, sampleRate, 0, float64(sampleRate)/2)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MelDifference, err)
	}

	mel, err := bank.ApplyFrames(spec.Magnitudes())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MelDifference, err)
	}

	for _, frame := range mel {
		for b, v := range frame {
			frame[b] = math.Log(v + epsilon)
		}
	}

	out := make([]float64, len(mel))
	rises := make([]float64, melBands)
	for n := 1; n < len(mel); n++ {
		for b := range rises {
			rises[b] = math.Max(0, mel[n][b]-mel[n-1][b])
		}
		out[n] = stat.Mean(rises, nil)
	}

	return out, nil
}
