// Package syncscore rates how well two onset detection functions line up.
package syncscore

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-sync/algorithms/stats"
)

var (
	// ErrEmpty is returned when either sequence has no frames.
	ErrEmpty = errors.New("empty onset sequence")
	// ErrNoOverlap is returned when the offset leaves no frames to compare.
	ErrNoOverlap = errors.New("onset sequences do not overlap")
)

var correlator = stats.NewCrossCorrelation()

// Score compares a[i] with b[i+offset] over the frames both sequences define
// and returns their normalized cross-correlation. Sequences of different
// lengths are truncated to the overlap. For non-negative inputs the score
// lies in [0, 1]; Score(x, x, 0) is 1 for any x with energy.
func Score(a, b []float64, offset int) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: lengths %d and %d", ErrEmpty, len(a), len(b))
	}

	if correlator.OverlapAt(len(a), len(b), offset).Length == 0 {
		return 0, fmt.Errorf("%w: lengths %d and %d at offset %d", ErrNoOverlap, len(a), len(b), offset)
	}

	return correlator.NormalizedAt(a, b, offset)
}
