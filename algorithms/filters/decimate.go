package filters

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Decimator reduces the sample rate of a signal by an integer factor.
//
// The anti-aliasing stage is a linear-phase windowed-sinc FIR (Hamming window,
// 20*factor+1 taps, cutoff at the new Nyquist frequency) applied centered, so the
// output carries no group delay. Only the retained output samples are computed.
type Decimator struct {
	factor int
	taps   []float64
}

// NewDecimator designs the anti-aliasing filter for the given factor.
func NewDecimator(factor int) (*Decimator, error) {
	if factor <= 0 {
		return nil, fmt.Errorf("decimation factor must be positive, got %d", factor)
	}
	if factor == 1 {
		return &Decimator{factor: 1}, nil
	}

	numTaps := 20*factor + 1
	half := numTaps / 2
	cutoff := 1.0 / float64(factor)

	taps := window.Hamming(numTaps)
	for i := range taps {
		taps[i] *= cutoff * sinc(cutoff*float64(i-half))
	}

	// unity gain at DC
	floats.Scale(1/floats.Sum(taps), taps)

	return &Decimator{factor: factor, taps: taps}, nil
}

// Taps returns a copy of the filter coefficients
func (d *Decimator) Taps() []float64 {
	out := make([]float64, len(d.taps))
	copy(out, d.taps)
	return out
}

// Process filters and downsamples the input. The output has
// ceil(len(input)/factor) samples; input[0] aligns with output[0].
func (d *Decimator) Process(input []float64) []float64 {
	if d.factor == 1 {
		out := make([]float64, len(input))
		copy(out, input)
		return out
	}

	n := len(input)
	numOut := (n + d.factor - 1) / d.factor
	half := len(d.taps) / 2
	output := make([]float64, numOut)

	for m := range numOut {
		center := m * d.factor
		sum := 0.0
		for j, h := range d.taps {
			idx := center + half - j
			if idx < 0 || idx >= n {
				continue
			}
			sum += h * input[idx]
		}
		output[m] = sum
	}

	return output
}

// Decimate is a convenience wrapper around NewDecimator and Process.
func Decimate(input []float64, factor int) ([]float64, error) {
	d, err := NewDecimator(factor)
	if err != nil {
		return nil, err
	}
	return d.Process(input), nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}
