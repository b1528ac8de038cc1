package gridsearch

import (
	"slices"
	"sync"
)

// ResultTable maps tuples to the log-ratio scores recorded for them, one per
// input directory. Keys keep first-insertion order; values only grow.
type ResultTable struct {
	mu     sync.Mutex
	keys   []Tuple
	values map[Tuple][]float64
}

// NewResultTable creates an empty table
func NewResultTable() *ResultTable {
	return &ResultTable{values: make(map[Tuple][]float64)}
}

// Append records one score under the tuple
func (rt *ResultTable) Append(t Tuple, score float64) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.appendLocked(t, score)
}

func (rt *ResultTable) appendLocked(t Tuple, scores ...float64) {
	existing, ok := rt.values[t]
	if !ok {
		rt.keys = append(rt.keys, t)
	}
	rt.values[t] = append(existing, scores...)
}

// Merge appends every entry of other, in other's key order.
func (rt *ResultTable) Merge(other *ResultTable) {
	if other == nil || other == rt {
		return
	}

	other.mu.Lock()
	keys := slices.Clone(other.keys)
	values := make(map[Tuple][]float64, len(keys))
	for _, k := range keys {
		values[k] = slices.Clone(other.values[k])
	}
	other.mu.Unlock()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	for _, k := range keys {
		rt.appendLocked(k, values[k]...)
	}
}

// Keys returns the tuples in first-insertion order
func (rt *ResultTable) Keys() []Tuple {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return slices.Clone(rt.keys)
}

// Values returns a copy of the scores recorded for a tuple
func (rt *ResultTable) Values(t Tuple) []float64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return slices.Clone(rt.values[t])
}

// Len returns the number of distinct tuples
func (rt *ResultTable) Len() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.keys)
}
