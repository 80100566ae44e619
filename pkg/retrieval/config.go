// Package retrieval implements the hybrid BM25 + dense vector + graph
// neighborhood retriever that fuses lexical, semantic, structural, and
// importance/recency signals into a single ranked result set
// (SPEC_FULL.md §4.F).
package retrieval

import (
	"math"

	"github.com/kittclouds/memengine/internal/errs"
	"github.com/kittclouds/memengine/pkg/memtypes"
)

// Config tunes a single hybrid search call.
type Config struct {
	MaxResults    int
	BM25Limit     int
	VectorLimit   int
	NeighborDepth int

	WeightBM25       float64
	WeightVector     float64
	WeightImportance float64
	WeightRecency    float64
	WeightGraph      float64
}

// DefaultConfig matches the reference weights: bm25 0.35, vector 0.35,
// importance 0.10, recency 0.20, graph 0.15.
func DefaultConfig() Config {
	return Config{
		MaxResults:       10,
		BM25Limit:        25,
		VectorLimit:      25,
		NeighborDepth:    1,
		WeightBM25:       0.35,
		WeightVector:     0.35,
		WeightImportance: 0.10,
		WeightRecency:    0.20,
		WeightGraph:      0.15,
	}
}

// Validate rejects non-finite or negative weights.
func (c Config) Validate() error {
	weights := map[string]float64{
		"bm25":       c.WeightBM25,
		"vector":     c.WeightVector,
		"importance": c.WeightImportance,
		"recency":    c.WeightRecency,
		"graph":      c.WeightGraph,
	}
	for name, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return errs.Configurationf("hybrid search weight %q is not finite", name)
		}
		if w < 0 {
			return errs.Configurationf("hybrid search weight %q is negative", name)
		}
	}
	return nil
}

// Explanation records which signals fired for a result, and their
// normalized contributions, for audit.
type Explanation struct {
	BM25       *float64
	Vector     *float64
	Importance float64
	Recency    float64
	Graph      float64
	Notes      []string
}

// Result pairs a ranked memory with its fused score and explanation.
type Result struct {
	Memory      memtypes.Memory
	Score       float64
	Rank        int
	Explanation Explanation
}

// scoreParts accumulates the raw, pre-normalization signal values for
// one candidate id before fusion.
type scoreParts struct {
	bm25Raw   *float64
	vectorRaw *float64
	graphRaw  float64
}
