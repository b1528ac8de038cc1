// Package onset computes onset detection functions (ODFs): one novelty value
// per spectrogram frame whose peaks are expected to line up with note onsets.
package onset

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-sync/algorithms/spectral"
)

// epsilon guards logarithms and divisions against zero-energy frames.
const epsilon = 1e-10

// defaultSampleRate is assumed by rate-dependent functions when none is given.
const defaultSampleRate = 44100

// Algorithm selects one onset detection function.
type Algorithm int

const (
	HFCMasri Algorithm = iota
	HFCJensen
	HFCMasriBello
	SpectralDistance
	ComplexDomain
	PhaseDeviation
	KLDivergence
	MelDifference
)

// Algorithms lists every onset detection function in a stable order.
var Algorithms = []Algorithm{
	HFCMasri,
	HFCJensen,
	HFCMasriBello,
	SpectralDistance,
	ComplexDomain,
	PhaseDeviation,
	KLDivergence,
	MelDifference,
}

var algorithmNames = map[Algorithm]string{
	HFCMasri:         "HFCMasri",
	HFCJensen:        "HFCJensen",
	HFCMasriBello:    "HFCMasriBello",
	SpectralDistance: "spectralDistance",
	ComplexDomain:    "complex",
	PhaseDeviation:   "phase",
	KLDivergence:     "KLDivergence",
	MelDifference:    "melDifference",
}

// String returns the identifier written to result tables.
func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("odf(%d)", int(a))
}

// ParseAlgorithm maps an identifier back to its Algorithm. Matching ignores case.
func ParseAlgorithm(name string) (Algorithm, error) {
	trimmed := strings.TrimSpace(name)
	for _, a := range Algorithms {
		if strings.EqualFold(algorithmNames[a], trimmed) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown onset detection function %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Compute evaluates the selected onset detection function over a spectrogram.
// The result has one value per frame. sampleRate is only used by MelDifference;
// a non-positive value falls back to 44.1 kHz.
func Compute(spec *spectral.Spectrogram, alg Algorithm, sampleRate int) ([]float64, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", alg, err)
	}

	switch alg {
	case HFCMasri:
		return hfcMasri(spec), nil
	case HFCJensen:
		return weightedHFC(spec, func(i int) float64 { return float64((i + 1) * (i + 1)) }), nil
	case HFCMasriBello:
		return weightedHFC(spec, func(i int) float64 { return float64(i + 2) }), nil
	case SpectralDistance:
		return spectralDistance(spec), nil
	case ComplexDomain:
		return complexDomain(spec), nil
	case PhaseDeviation:
		return phaseDeviation(spec)
	case KLDivergence:
		return klDivergence(spec), nil
	case MelDifference:
		if sampleRate <= 0 {
			sampleRate = defaultSampleRate
		}
		return melDifference(spec, sampleRate)
	default:
		return nil, fmt.Errorf("unsupported onset detection function %d", int(alg))
	}
}
