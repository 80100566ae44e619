package retrieval

import (
	"math"
	"sort"

	"github.com/kittclouds/memengine/internal/scorepool"
	"github.com/kittclouds/memengine/pkg/memtypes"
)

// BM25Hit is one lexical candidate, as returned by the full-text index.
type BM25Hit struct {
	ID    string
	Score float64
}

// VectorHit is one dense candidate, as returned by a vector backend.
type VectorHit struct {
	ID    string
	Score float64
}

// NeighborHit is one graph-expansion candidate reached from a seed via
// a typed, weighted association.
type NeighborHit struct {
	MemoryID string
	Relation memtypes.RelationType
}

// LoadMemoryFunc loads a memory by id, or returns (nil, nil) if absent
// (not an error — callers treat a missing id as "skip this candidate").
type LoadMemoryFunc func(id string) (*memtypes.Memory, error)

// NeighborFunc returns the typed neighbors of seedID at the given
// graph depth.
type NeighborFunc func(seedID string, depth int) ([]NeighborHit, error)

// EmbedQueryFunc embeds free text into a dense vector. A nil value or
// an error means the dense signal is skipped (graceful degradation).
type EmbedQueryFunc func(text string) ([]float32, error)

// VectorSearchFunc runs a k-nearest-neighbor search over a query
// vector and returns raw (higher-is-better) scores.
type VectorSearchFunc func(vec []float32, k int) ([]VectorHit, error)

// HybridRank fuses lexical, dense, graph, importance, and recency
// signals into a single ranked result list (SPEC_FULL.md §4.F).
//
// embed/vectorSearch may both be nil, or either may fail, in which case
// the dense signal is omitted entirely from candidates and explanations rather than
// scored as zero, so callers can distinguish "no vector backend" from
// "the vector backend found nothing relevant".
func HybridRank(
	query string,
	bm25Hits []BM25Hit,
	embed EmbedQueryFunc,
	vectorSearch VectorSearchFunc,
	loadMemory LoadMemoryFunc,
	getNeighbors NeighborFunc,
	cfg Config,
	filterType *memtypes.MemoryType,
	now int64,
) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	parts := make(map[string]*scoreParts)
	partsFor := func(id string) *scoreParts {
		if p, ok := parts[id]; ok {
			return p
		}
		p := &scoreParts{}
		parts[id] = p
		return p
	}

	bm25Map := scorepool.Get()
	defer scorepool.Put(bm25Map)

	bm25Limit := bm25Hits
	if cfg.BM25Limit > 0 && len(bm25Limit) > cfg.BM25Limit {
		bm25Limit = bm25Limit[:cfg.BM25Limit]
	}
	for _, h := range bm25Limit {
		mem, err := loadMemory(h.ID)
		if err != nil {
			return nil, err
		}
		if mem == nil || mem.Forgotten || !typeMatches(mem.MemoryType, filterType) {
			continue
		}
		bm25Map[h.ID] = h.Score
		score := h.Score
		partsFor(h.ID).bm25Raw = &score
	}

	vectorMap := scorepool.Get()
	defer scorepool.Put(vectorMap)

	if embed != nil && vectorSearch != nil {
		// An embedder or vector-search error drops the dense signal
		// instead of failing the whole search.
		vec, err := embed(query)
		if err == nil && vec != nil {
			limit := cfg.VectorLimit
			if limit <= 0 {
				limit = 25
			}
			hits, err := vectorSearch(vec, limit)
			if err != nil {
				hits = nil
			}
			for _, h := range hits {
				mem, err := loadMemory(h.ID)
				if err != nil {
					return nil, err
				}
				if mem == nil || mem.Forgotten || !typeMatches(mem.MemoryType, filterType) {
					continue
				}
				vectorMap[h.ID] = h.Score
				score := h.Score
				partsFor(h.ID).vectorRaw = &score
			}
		}
	}

	// Seed merge: union bm25 + vector candidates, sorted by raw score
	// descending, take the strongest 10 as graph-expansion seeds.
	type seed struct {
		id    string
		score float64
	}
	seedSet := make(map[string]float64, len(bm25Map)+len(vectorMap))
	for id, s := range bm25Map {
		if cur, ok := seedSet[id]; !ok || s > cur {
			seedSet[id] = s
		}
	}
	for id, s := range vectorMap {
		if cur, ok := seedSet[id]; !ok || s > cur {
			seedSet[id] = s
		}
	}
	seeds := make([]seed, 0, len(seedSet))
	for id, s := range seedSet {
		seeds = append(seeds, seed{id, s})
	}
	sort.Slice(seeds, func(i, j int) bool {
		if seeds[i].score != seeds[j].score {
			return seeds[i].score > seeds[j].score
		}
		return seeds[i].id < seeds[j].id
	})
	if len(seeds) > 10 {
		seeds = seeds[:10]
	}

	if getNeighbors != nil {
		for _, sd := range seeds {
			neighbors, err := getNeighbors(sd.id, cfg.NeighborDepth)
			if err != nil {
				return nil, err
			}
			for _, n := range neighbors {
				mem, err := loadMemory(n.MemoryID)
				if err != nil {
					return nil, err
				}
				if mem == nil || mem.Forgotten || !typeMatches(mem.MemoryType, filterType) {
					continue
				}
				mult := n.Relation.ScoreMultiplier()
				partsFor(n.MemoryID).graphRaw += sd.score * mult
			}
		}
	}

	bm25Norm := normalizeScores(bm25Map)
	vectorNorm := normalizeScores(vectorMap)

	graphValues := make(map[string]float64)
	for id, p := range parts {
		if p.graphRaw > 0 {
			graphValues[id] = p.graphRaw
		}
	}
	graphNorm := normalizeScores(graphValues)

	var results []Result
	for id, p := range parts {
		mem, err := loadMemory(id)
		if err != nil {
			return nil, err
		}
		if mem == nil || mem.Forgotten || !typeMatches(mem.MemoryType, filterType) {
			continue
		}

		var bm25, vec *float64
		if p.bm25Raw != nil {
			if v, ok := bm25Norm[id]; ok {
				bm25 = &v
			}
		}
		if p.vectorRaw != nil {
			if v, ok := vectorNorm[id]; ok {
				vec = &v
			}
		}
		graph := graphNorm[id]

		importance := clamp01(mem.Importance)
		recency := recencyFactor(mem.LastAccessedAt.Unix(), now)

		explanation := Explanation{
			BM25:       bm25,
			Vector:     vec,
			Importance: importance,
			Recency:    recency,
			Graph:      graph,
		}
		if bm25 != nil {
			explanation.Notes = append(explanation.Notes, "matched bm25 full-text search")
		}
		if vec != nil {
			explanation.Notes = append(explanation.Notes, "matched semantic vector search")
		}
		if graph > 0 {
			explanation.Notes = append(explanation.Notes, "included via graph neighborhood expansion")
		}

		score := cfg.WeightBM25*deref(bm25) +
			cfg.WeightVector*deref(vec) +
			cfg.WeightImportance*importance +
			cfg.WeightRecency*recency +
			cfg.WeightGraph*graph

		results = append(results, Result{
			Memory:      *mem,
			Score:       score,
			Explanation: explanation,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	return results, nil
}

func typeMatches(t memtypes.MemoryType, filter *memtypes.MemoryType) bool {
	return filter == nil || t == *filter
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// recencyFactor decays toward 0 as hours since last access grows;
// never negative even if last accessed is in the future relative to
// now (clock skew).
func recencyFactor(lastAccessedUnix, nowUnix int64) float64 {
	hoursAgo := float64(nowUnix-lastAccessedUnix) / 3600.0
	if hoursAgo < 0 {
		hoursAgo = 0
	}
	return 1.0 / (1.0 + hoursAgo*0.01)
}

// normalizeScores min-max normalizes a raw score map into [0,1]. When
// every value is equal (including the single-value case), every id is
// assigned 1.0 uniformly rather than dividing by zero.
func normalizeScores(values map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(values))
	if len(values) == 0 {
		return out
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max-min < 1e-9 {
		for k := range values {
			out[k] = 1.0
		}
		return out
	}
	for k, v := range values {
		out[k] = (v - min) / (max - min)
	}
	return out
}
