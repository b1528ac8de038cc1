package stats

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Summary holds the descriptive statistics reported per grid-search tuple.
type Summary struct {
	Mean             float64 `json:"mean"`
	StdDev           float64 `json:"std_dev"` // population standard deviation
	Median           float64 `json:"median"`
	FractionPositive float64 `json:"fraction_positive"`
	Count            int     `json:"count"`
}

// Summarize reduces a sequence of scores to its Summary.
func Summarize(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("cannot summarize an empty sequence")
	}

	mean, std := stat.PopMeanStdDev(values, nil)

	median, err := Median(values)
	if err != nil {
		return Summary{}, err
	}

	positive := 0
	for _, v := range values {
		if v > 0 {
			positive++
		}
	}

	return Summary{
		Mean:             mean,
		StdDev:           std,
		Median:           median,
		FractionPositive: float64(positive) / float64(len(values)),
		Count:            len(values),
	}, nil
}

// Median returns the middle value, averaging the two central values for even
// lengths. The input is not modified.
func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("median of an empty sequence")
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	// Empirical picks the lower of the two central values
	lower := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if len(sorted)%2 == 1 {
		return lower, nil
	}
	return (lower + sorted[len(sorted)/2]) / 2, nil
}

// Extremes returns the minimum and maximum of a non-empty sequence.
func Extremes(values []float64) (lo, hi float64, err error) {
	if len(values) == 0 {
		return 0, 0, fmt.Errorf("extremes of an empty sequence")
	}
	return slices.Min(values), slices.Max(values), nil
}
