package windowing

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/window"
)

// Kind identifies an analysis window function.
type Kind int

const (
	Rectangular Kind = iota
	Hamming
	Hann
)

// Kinds lists every supported window in a stable order.
var Kinds = []Kind{Rectangular, Hamming, Hann}

// String returns the identifier used in result files.
func (k Kind) String() string {
	switch k {
	case Rectangular:
		return "ones"
	case Hamming:
		return "hamming"
	case Hann:
		return "hanning"
	default:
		return fmt.Sprintf("window(%d)", int(k))
	}
}

// ParseKind maps an identifier back to its Kind. A few common aliases are accepted.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ones", "rectangular", "boxcar":
		return Rectangular, nil
	case "hamming":
		return Hamming, nil
	case "hanning", "hann":
		return Hann, nil
	default:
		return 0, fmt.Errorf("unknown window %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler so configs can name windows.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Coefficients returns the symmetric window of the given size.
func (k Kind) Coefficients(size int) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", size)
	}

	switch k {
	case Rectangular:
		return window.Rectangular(size), nil
	case Hamming:
		return window.Hamming(size), nil
	case Hann:
		return window.Hann(size), nil
	default:
		return nil, fmt.Errorf("unsupported window kind %d", int(k))
	}
}

// Window holds precomputed coefficients for repeated in-place application.
type Window struct {
	coefficients []float64
}

// New creates a window of the given kind and size
func New(kind Kind, size int) (*Window, error) {
	coeffs, err := kind.Coefficients(size)
	if err != nil {
		return nil, err
	}
	return &Window{coefficients: coeffs}, nil
}

// ApplyInPlace applies the window to a signal in-place
func (w *Window) ApplyInPlace(signal []float64) error {
	if len(signal) != len(w.coefficients) {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), len(w.coefficients))
	}

	for i, c := range w.coefficients {
		signal[i] *= c
	}
	return nil
}

