package gridsearch

import (
	"fmt"
	"strconv"

	"github.com/RyanBlaney/sonido-sync/algorithms/onset"
	"github.com/RyanBlaney/sonido-sync/algorithms/windowing"
)

// Tuple identifies one grid-search configuration. It is comparable and used
// directly as a map key; two tuples are equal when all six fields are.
type Tuple struct {
	ODF          onset.Algorithm
	Downsampling int
	FrameSize    int
	HopScale     int
	Window       windowing.Kind
	Offset       int
}

// tupleColumns is the number of leading CSV columns that hold a Tuple.
const tupleColumns = 6

// HopSize returns the hop in samples at the downsampled rate
func (t Tuple) HopSize() int {
	return t.FrameSize / t.HopScale
}

// Record returns the CSV form: odf, downsampling, frame size, hop scale, window, offset.
func (t Tuple) Record() []string {
	return []string{
		t.ODF.String(),
		strconv.Itoa(t.Downsampling),
		strconv.Itoa(t.FrameSize),
		strconv.Itoa(t.HopScale),
		t.Window.String(),
		strconv.Itoa(t.Offset),
	}
}

func (t Tuple) String() string {
	return fmt.Sprintf("(%s, %d, %d, %d, %s, %d)", t.ODF, t.Downsampling, t.FrameSize, t.HopScale, t.Window, t.Offset)
}

// ParseTuple reads the first six fields of a record.
func ParseTuple(record []string) (Tuple, error) {
	if len(record) < tupleColumns {
		return Tuple{}, fmt.Errorf("tuple needs %d fields, got %d", tupleColumns, len(record))
	}

	odf, err := onset.ParseAlgorithm(record[0])
	if err != nil {
		return Tuple{}, err
	}
	window, err := windowing.ParseKind(record[4])
	if err != nil {
		return Tuple{}, err
	}

	ints := make([]int, 0, 4)
	for _, idx := range []int{1, 2, 3, 5} {
		v, err := strconv.Atoi(record[idx])
		if err != nil {
			return Tuple{}, fmt.Errorf("tuple field %d: %w", idx, err)
		}
		ints = append(ints, v)
	}

	return Tuple{
		ODF:          odf,
		Downsampling: ints[0],
		FrameSize:    ints[1],
		HopScale:     ints[2],
		Window:       window,
		Offset:       ints[3],
	}, nil
}
