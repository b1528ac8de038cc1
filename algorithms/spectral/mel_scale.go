package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// HzToMel converts frequency in Hz to mel scale
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts mel scale to frequency in Hz
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// MelFilterBank holds triangular filters over the non-negative FFT bins.
type MelFilterBank struct {
	filters [][]float64
	numBins int
}

// NewMelFilterBank builds numFilters triangular filters spaced evenly on the
// mel scale between lowFreq and highFreq, for frames of fftSize/2+1 bins.
func NewMelFilterBank(numFilters int, fftSize int, sampleRate int, lowFreq, highFreq float64) (*MelFilterBank, error) {
	if numFilters <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid mel filter bank parameters: filters=%d fft=%d rate=%d", numFilters, fftSize, sampleRate)
	}
	if highFreq <= lowFreq {
		return nil, fmt.Errorf("mel filter bank high frequency %.1f must exceed low frequency %.1f", highFreq, lowFreq)
	}

	lowMel := HzToMel(lowFreq)
	highMel := HzToMel(highFreq)

	melPoints := make([]float64, numFilters+2)
	floats.Span(melPoints, lowMel, highMel)

	numBins := fftSize/2 + 1
	binPoints := make([]int, len(melPoints))
	for i, mel := range melPoints {
		hz := MelToHz(mel)
		binPoints[i] = int(math.Floor((float64(fftSize)+1.0)*hz/float64(sampleRate) + 0.5))
		binPoints[i] = min(binPoints[i], fftSize/2)
	}

	filters := make([][]float64, numFilters)
	for m := 1; m <= numFilters; m++ {
		filter := make([]float64, numBins)
		leftBin := binPoints[m-1]
		centerBin := binPoints[m]
		rightBin := binPoints[m+1]

		// Rising edge
		for k := leftBin; k < centerBin; k++ {
			filter[k] = float64(k-leftBin) / float64(centerBin-leftBin)
		}

		// Falling edge
		for k := centerBin; k < rightBin; k++ {
			filter[k] = float64(rightBin-k) / float64(rightBin-centerBin)
		}

		filters[m-1] = filter
	}

	return &MelFilterBank{filters: filters, numBins: numBins}, nil
}

// NumFilters returns the number of mel bands
func (mb *MelFilterBank) NumFilters() int {
	return len(mb.filters)
}

// Apply projects one spectrum onto the mel bands.
func (mb *MelFilterBank) Apply(spectrum []float64) ([]float64, error) {
	if len(spectrum) != mb.numBins {
		return nil, fmt.Errorf("spectrum has %d bins, filter bank expects %d", len(spectrum), mb.numBins)
	}

	melSpectrum := make([]float64, len(mb.filters))
	for i, filter := range mb.filters {
		melSpectrum[i] = floats.Dot(filter, spectrum)
	}
	return melSpectrum, nil
}

// ApplyFrames projects every frame of a time x frequency matrix.
func (mb *MelFilterBank) ApplyFrames(spectrogram [][]float64) ([][]float64, error) {
	out := make([][]float64, len(spectrogram))
	for t, frame := range spectrogram {
		mel, err := mb.Apply(frame)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", t, err)
		}
		out[t] = mel
	}
	return out, nil
}
