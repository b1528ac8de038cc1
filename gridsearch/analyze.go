package gridsearch

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-sync/algorithms/stats"
)

// Dimension is one axis of the parameter grid
type Dimension int

const (
	DimensionODF Dimension = iota
	DimensionDownsampling
	DimensionFrameSize
	DimensionHopScale
	DimensionWindow
	DimensionOffset
)

// Dimensions lists every axis in report column order
var Dimensions = []Dimension{
	DimensionODF,
	DimensionDownsampling,
	DimensionFrameSize,
	DimensionHopScale,
	DimensionWindow,
	DimensionOffset,
}

var dimensionNames = map[Dimension]string{
	DimensionODF:          "odf",
	DimensionDownsampling: "downsampling",
	DimensionFrameSize:    "frame_size",
	DimensionHopScale:     "hop_scale",
	DimensionWindow:       "window",
	DimensionOffset:       "offset",
}

func (d Dimension) String() string {
	if name, ok := dimensionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("dimension(%d)", int(d))
}

// ParseDimension accepts the names printed by String.
func ParseDimension(name string) (Dimension, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for d, n := range dimensionNames {
		if n == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown dimension %q", name)
}

// HistogramBins is the number of equal-width bins over [0, 1] used for
// fraction-positive histograms.
const HistogramBins = 50

// DimensionSummary describes the fraction-positive values of every row
// that shares one value along a dimension.
type DimensionSummary struct {
	Value     string    `json:"value"`
	Count     int       `json:"count"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	Max       float64   `json:"max"`
	Min       float64   `json:"min"`
	Histogram []float64 `json:"histogram"` // counts per bin over [0, 1]
}

// SummarizeDimension groups rows by their value along dim, in order of first
// appearance, and summarizes the fraction of positive scores in each group.
func SummarizeDimension(rows []Row, dim Dimension) ([]DimensionSummary, error) {
	if _, ok := dimensionNames[dim]; !ok {
		return nil, fmt.Errorf("unknown dimension %d", int(dim))
	}

	var order []string
	groups := make(map[string][]float64)
	for _, row := range rows {
		value := row.Tuple.Record()[dim]
		if _, ok := groups[value]; !ok {
			order = append(order, value)
		}
		groups[value] = append(groups[value], row.Summary.FractionPositive)
	}

	summaries := make([]DimensionSummary, 0, len(order))
	for _, value := range order {
		fractions := groups[value]
		mean, std := stat.PopMeanStdDev(fractions, nil)
		lo, hi, err := stats.Extremes(fractions)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, DimensionSummary{
			Value:     value,
			Count:     len(fractions),
			Mean:      mean,
			StdDev:    std,
			Max:       hi,
			Min:       lo,
			Histogram: fractionHistogram(fractions),
		})
	}
	return summaries, nil
}

// fractionHistogram bins values in [0, 1]; anything outside is clamped into
// the first or last bin.
func fractionHistogram(values []float64) []float64 {
	dividers := make([]float64, HistogramBins+1)
	floats.Span(dividers, 0, 1)
	dividers[HistogramBins] = math.Nextafter(1, 2)

	clamped := make([]float64, len(values))
	for i, v := range values {
		clamped[i] = math.Min(math.Max(v, 0), 1)
	}
	slices.Sort(clamped)
	return stat.Histogram(nil, dividers, clamped, nil)
}
