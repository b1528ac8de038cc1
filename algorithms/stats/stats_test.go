package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeScenario(t *testing.T) {
	s, err := Summarize([]float64{1.0, -1.0, 2.0})
	require.NoError(t, err)

	assert.InDelta(t, 0.667, s.Mean, 1e-3)
	assert.InDelta(t, 1.0, s.Median, 1e-12)
	assert.InDelta(t, 2.0/3.0, s.FractionPositive, 1e-12)
	assert.InDelta(t, math.Sqrt(14.0/9.0), s.StdDev, 1e-12)
	assert.Equal(t, 3, s.Count)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	assert.Error(t, err)
}

func TestMedian(t *testing.T) {
	cases := []struct {
		in   []float64
		want float64
	}{
		{[]float64{5}, 5},
		{[]float64{3, 1}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
		{[]float64{9, -2, 7}, 7},
	}
	for _, c := range cases {
		got, err := Median(c.in)
		require.NoError(t, err)
		assert.InDelta(t, c.want, got, 1e-12, "%v", c.in)
	}

	in := []float64{3, 1, 2}
	_, _ = Median(in)
	assert.Equal(t, []float64{3, 1, 2}, in)

	_, err := Median(nil)
	assert.Error(t, err)
}

func TestExtremes(t *testing.T) {
	lo, hi, err := Extremes([]float64{2, -1, 4})
	require.NoError(t, err)
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 4.0, hi)

	_, _, err = Extremes(nil)
	assert.Error(t, err)
}

func TestOverlapAt(t *testing.T) {
	cc := NewCrossCorrelation()

	assert.Equal(t, Overlap{Start1: 0, Start2: 2, Length: 3}, cc.OverlapAt(5, 5, 2))
	assert.Equal(t, Overlap{Start1: 2, Start2: 0, Length: 3}, cc.OverlapAt(5, 5, -2))
	assert.Equal(t, Overlap{Start1: 0, Start2: 1, Length: 3}, cc.OverlapAt(3, 10, 1))
	assert.Equal(t, 0, cc.OverlapAt(3, 3, 3).Length)
}

func TestNormalizedAt(t *testing.T) {
	cc := NewCrossCorrelation()
	x := []float64{0, 1, 0, 2, 0, 1}

	v, err := cc.NormalizedAt(x, x, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	shifted := []float64{9, 0, 1, 0, 2, 0, 1}
	v, err = cc.NormalizedAt(x, shifted, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	v, err = cc.NormalizedAt(make([]float64, 4), x, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	_, err = cc.NormalizedAt(x, x, 6)
	assert.Error(t, err)
}
