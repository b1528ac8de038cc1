package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// CrossCorrelation computes normalized cross-correlation between two signals
// at individual lags, restricted to the region where both signals are defined.
//
// References:
// - Lewis, J.P. (1995). "Fast Template Matching"
// - Oppenheim, A.V., Schafer, R.W. (2010). "Discrete-Time Signal Processing"
type CrossCorrelation struct {
	// energy products below this are treated as silence
	minEnergy float64
}

// NewCrossCorrelation creates a cross-correlation calculator
func NewCrossCorrelation() *CrossCorrelation {
	return &CrossCorrelation{
		minEnergy: 1e-10,
	}
}

// Overlap describes the aligned index ranges of two signals at a lag.
type Overlap struct {
	Start1, Start2 int
	Length         int
}

// OverlapAt pairs signal1[i] with signal2[i+lag]. A negative lag pairs
// signal1[i-lag] with signal2[i]. Length is zero when nothing overlaps.
func (cc *CrossCorrelation) OverlapAt(len1, len2, lag int) Overlap {
	var o Overlap
	if lag >= 0 {
		o.Start1, o.Start2 = 0, lag
	} else {
		o.Start1, o.Start2 = -lag, 0
	}
	o.Length = max(0, min(len1-o.Start1, len2-o.Start2))
	return o
}

// NormalizedAt returns sum(a*b)/sqrt(sum(a^2)*sum(b^2)) over the overlap at lag.
// Silent overlaps yield 0. It fails only when the signals do not overlap.
func (cc *CrossCorrelation) NormalizedAt(signal1, signal2 []float64, lag int) (float64, error) {
	o := cc.OverlapAt(len(signal1), len(signal2), lag)
	if o.Length == 0 {
		return 0, fmt.Errorf("signals of length %d and %d do not overlap at lag %d", len(signal1), len(signal2), lag)
	}

	a := signal1[o.Start1 : o.Start1+o.Length]
	b := signal2[o.Start2 : o.Start2+o.Length]

	denominator := math.Sqrt(floats.Dot(a, a) * floats.Dot(b, b))
	if denominator < cc.minEnergy {
		return 0, nil
	}

	return floats.Dot(a, b) / denominator, nil
}
