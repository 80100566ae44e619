// Package scorepool pools the score accumulator maps allocated per
// hybrid retrieval call, the same object-pooling idiom the teacher
// used for JSON-output buffers, retargeted at float64 score maps.
package scorepool

import "sync"

var mapPool = sync.Pool{
	New: func() any {
		return make(map[string]float64, 32)
	},
}

// Get returns a cleared map[string]float64 ready for accumulation.
func Get() map[string]float64 {
	m := mapPool.Get().(map[string]float64)
	for k := range m {
		delete(m, k)
	}
	return m
}

// Put returns a map to the pool for reuse.
func Put(m map[string]float64) {
	mapPool.Put(m)
}
