// Package eval provides a retrieval evaluation harness: graded-
// relevance metrics (Recall@k, MRR, nDCG@k, latency aggregation) and a
// keyword-relevance benchmark mode with baseline comparisons
// (SPEC_FULL.md §4.K).
package eval

import (
	"math"
	"sort"
)

// Query is one graded-relevance evaluation case: a set of candidate
// ids with an integer relevance grade (0 = not relevant).
type Query struct {
	QueryID    string
	QueryText  string
	Relevance  map[string]int
}

// QueryMetrics is the per-query result of evaluating one Query against
// a retrieved id list.
type QueryMetrics struct {
	QueryID      string
	RecallAt1    float64
	RecallAt3    float64
	RecallAt5    float64
	MRR          float64
	NDCGAtK      float64
	LatencyMs    float64
	RetrievedIDs []string
}

// AggregateMetrics is the mean of QueryMetrics across a run, plus
// latency percentiles.
type AggregateMetrics struct {
	EvaluatedQueries int
	RecallAt1        float64
	RecallAt3        float64
	RecallAt5        float64
	MRR              float64
	NDCGAtK          float64
	AvgLatencyMs     float64
	P95LatencyMs     float64
}

// EvaluateQuery scores one retrieval against its relevance map.
func EvaluateQuery(queryID string, retrievedIDs []string, relevance map[string]int, latencyMs float64, ndcgK int) QueryMetrics {
	relevantSet := make(map[string]bool, len(relevance))
	for id, grade := range relevance {
		if grade > 0 {
			relevantSet[id] = true
		}
	}

	return QueryMetrics{
		QueryID:      queryID,
		RecallAt1:    recallAtK(retrievedIDs, relevantSet, 1),
		RecallAt3:    recallAtK(retrievedIDs, relevantSet, 3),
		RecallAt5:    recallAtK(retrievedIDs, relevantSet, 5),
		MRR:          reciprocalRank(retrievedIDs, relevantSet),
		NDCGAtK:      ndcgAtK(retrievedIDs, relevance, ndcgK),
		LatencyMs:    latencyMs,
		RetrievedIDs: retrievedIDs,
	}
}

// Aggregate computes the mean of every metric across perQuery, plus
// average and p95 latency. Returns the zero value for an empty input.
func Aggregate(perQuery []QueryMetrics) AggregateMetrics {
	if len(perQuery) == 0 {
		return AggregateMetrics{}
	}

	n := float64(len(perQuery))
	latencies := make([]float64, len(perQuery))
	var sumRecall1, sumRecall3, sumRecall5, sumMRR, sumNDCG, sumLatency float64
	for i, m := range perQuery {
		latencies[i] = m.LatencyMs
		sumRecall1 += m.RecallAt1
		sumRecall3 += m.RecallAt3
		sumRecall5 += m.RecallAt5
		sumMRR += m.MRR
		sumNDCG += m.NDCGAtK
		sumLatency += m.LatencyMs
	}
	sort.Float64s(latencies)
	p95Idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
	if p95Idx < 0 {
		p95Idx = 0
	}
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}

	return AggregateMetrics{
		EvaluatedQueries: len(perQuery),
		RecallAt1:        sumRecall1 / n,
		RecallAt3:        sumRecall3 / n,
		RecallAt5:        sumRecall5 / n,
		MRR:              sumMRR / n,
		NDCGAtK:          sumNDCG / n,
		AvgLatencyMs:     sumLatency / n,
		P95LatencyMs:     latencies[p95Idx],
	}
}

func recallAtK(retrieved []string, relevant map[string]bool, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}
	limit := k
	if limit > len(retrieved) {
		limit = len(retrieved)
	}
	found := 0
	for _, id := range retrieved[:limit] {
		if relevant[id] {
			found++
		}
	}
	return float64(found) / float64(len(relevant))
}

func reciprocalRank(retrieved []string, relevant map[string]bool) float64 {
	for i, id := range retrieved {
		if relevant[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

func ndcgAtK(retrieved []string, relevance map[string]int, k int) float64 {
	if len(relevance) == 0 || k == 0 {
		return 0
	}
	dcg := dcgAtK(retrieved, relevance, k)
	idcg := idealDCGAtK(relevance, k)
	if idcg <= 1e-9 {
		return 0
	}
	return dcg / idcg
}

func gain(rel float64, rank int) float64 {
	g := math.Max(0, math.Pow(2, rel)-1)
	denom := math.Log2(float64(rank) + 2)
	if denom <= 1e-9 {
		return 0
	}
	return g / denom
}

func dcgAtK(retrieved []string, relevance map[string]int, k int) float64 {
	limit := k
	if limit > len(retrieved) {
		limit = len(retrieved)
	}
	var sum float64
	for rank, id := range retrieved[:limit] {
		sum += gain(float64(relevance[id]), rank)
	}
	return sum
}

func idealDCGAtK(relevance map[string]int, k int) float64 {
	grades := make([]float64, 0, len(relevance))
	for _, v := range relevance {
		if v > 0 {
			grades = append(grades, float64(v))
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(grades)))
	limit := k
	if limit > len(grades) {
		limit = len(grades)
	}
	var sum float64
	for rank, g := range grades[:limit] {
		sum += gain(g, rank)
	}
	return sum
}
