package syncscore

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onsetTrain(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		if rng.Intn(8) == 0 {
			out[i] = 0.5 + rng.Float64()
		}
	}
	return out
}

func TestSelfScoreIsMaximal(t *testing.T) {
	x := onsetTrain(400, 1)
	self, err := Score(x, x, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, self, 1e-12)

	for seed := int64(2); seed < 10; seed++ {
		other := onsetTrain(400, seed)
		s, err := Score(x, other, 0)
		require.NoError(t, err)
		assert.LessOrEqual(t, s, self+1e-12)

		shifted, err := Score(x, x, int(seed))
		require.NoError(t, err)
		assert.LessOrEqual(t, shifted, self+1e-12)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	a := onsetTrain(300, 3)
	b := onsetTrain(300, 4)
	first, err := Score(a, b, 5)
	require.NoError(t, err)
	second, err := Score(a, b, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScoreRecoversKnownOffset(t *testing.T) {
	a := onsetTrain(500, 5)
	b := append(make([]float64, 7), a...)

	s, err := Score(a, b, 7)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-12)
}

func TestScoreTruncatesMismatchedLengths(t *testing.T) {
	a := onsetTrain(200, 6)
	long := append(append([]float64{}, a...), onsetTrain(50, 7)...)

	s, err := Score(a, long, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-12)
}

func TestScoreErrors(t *testing.T) {
	_, err := Score(nil, []float64{1}, 0)
	assert.True(t, errors.Is(err, ErrEmpty))

	_, err = Score([]float64{1, 2}, []float64{1, 2}, 2)
	assert.True(t, errors.Is(err, ErrNoOverlap))

	_, err = Score([]float64{1, 2}, []float64{1, 2}, -2)
	assert.True(t, errors.Is(err, ErrNoOverlap))
}

func TestSilentSequencesScoreZero(t *testing.T) {
	s, err := Score(make([]float64, 10), onsetTrain(10, 8), 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}
