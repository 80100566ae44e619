package eval

import (
	"strings"
	"time"

	"github.com/kittclouds/memengine/pkg/retrieval"
	"github.com/kittclouds/memengine/pkg/tokenize"
)

// TestCase is an ungraded keyword-relevance benchmark case: a query
// plus the keywords a relevant memory's content is expected to
// contain.
type TestCase struct {
	Query            string
	ExpectedKeywords []string
	Description      string
}

// QueryResult is the per-test-case detail behind one BenchmarkResults
// entry.
type QueryResult struct {
	Query             string
	ExpectedCount     int
	RetrievedCount    int
	RelevantRetrieved int
	Precision         float64
	Recall            float64
	LatencyMs         float64
	TopResults        []ScoredID
}

// ScoredID pairs a result id with its fused score, for the top-3
// preview kept per query result.
type ScoredID struct {
	ID    string
	Score float64
}

// BenchmarkResults is a named configuration's aggregate keyword-
// relevance benchmark outcome.
type BenchmarkResults struct {
	Name           string
	PrecisionAtK   float64
	RecallAtK      float64
	F1Score        float64
	AvgLatencyMs   float64
	QueriesTested  int
	PerfectQueries int
	QueryResults   []QueryResult
}

// SearchFunc runs one hybrid search and returns ranked results; the
// harness measures wall-clock latency around this call.
type SearchFunc func(query string, cfg retrieval.Config) ([]retrieval.Result, error)

// RunKeywordBenchmark executes testCases against search using cfg,
// scoring each result's content for expected-keyword containment via
// an Aho-Corasick automaton built fresh per test case (the same
// matching engine production entity scanning uses), not substring
// scanning.
func RunKeywordBenchmark(name string, search SearchFunc, testCases []TestCase, cfg retrieval.Config) (BenchmarkResults, error) {
	var queryResults []QueryResult
	var totalPrecision, totalRecall, totalLatency float64
	var perfectCount int

	for _, tc := range testCases {
		start := time.Now()
		results, err := search(tc.Query, cfg)
		if err != nil {
			return BenchmarkResults{}, err
		}
		latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

		matcher, err := tokenize.NewKeywordMatcher(tc.ExpectedKeywords)
		if err != nil {
			return BenchmarkResults{}, err
		}

		relevantRetrieved := 0
		for _, r := range results {
			if matcher.PatternCount() == 0 || matcher.ContainsAny(r.Memory.Content) {
				relevantRetrieved++
			}
		}

		precision := 0.0
		if len(results) > 0 {
			precision = float64(relevantRetrieved) / float64(len(results))
		}

		recall := 1.0
		if len(tc.ExpectedKeywords) > 0 {
			estimatedRelevant := estimateExpectedRelevant(tc.Query)
			recall = minF(float64(relevantRetrieved)/float64(estimatedRelevant), 1.0)
		}

		if precision >= 0.99 {
			perfectCount++
		}
		totalPrecision += precision
		totalRecall += recall
		totalLatency += latencyMs

		top := results
		if len(top) > 3 {
			top = top[:3]
		}
		topScored := make([]ScoredID, len(top))
		for i, r := range top {
			topScored[i] = ScoredID{ID: r.Memory.ID, Score: r.Score}
		}

		queryResults = append(queryResults, QueryResult{
			Query:             tc.Query,
			ExpectedCount:     len(tc.ExpectedKeywords),
			RetrievedCount:    len(results),
			RelevantRetrieved: relevantRetrieved,
			Precision:         precision,
			Recall:            recall,
			LatencyMs:         latencyMs,
			TopResults:        topScored,
		})
	}

	n := float64(len(testCases))
	if n == 0 {
		return BenchmarkResults{Name: name}, nil
	}
	avgPrecision := totalPrecision / n
	avgRecall := totalRecall / n
	f1 := 0.0
	if avgPrecision+avgRecall > 0.001 {
		f1 = 2 * avgPrecision * avgRecall / (avgPrecision + avgRecall)
	}

	return BenchmarkResults{
		Name:           name,
		PrecisionAtK:   avgPrecision,
		RecallAtK:      avgRecall,
		F1Score:        f1,
		AvgLatencyMs:   totalLatency / n,
		QueriesTested:  len(testCases),
		PerfectQueries: perfectCount,
		QueryResults:   queryResults,
	}, nil
}

// estimateExpectedRelevant mirrors the reference's rough per-query-kind
// expected-relevant-count heuristic used to turn containment counts
// into an approximate recall when no graded relevance set exists.
func estimateExpectedRelevant(query string) int {
	q := query
	switch {
	case containsFold(q, "preference"):
		return 5
	case containsFold(q, "goal"):
		return 3
	case containsFold(q, "decision"):
		return 3
	case containsFold(q, "like") && !containsFold(q, "preference"):
		return 4
	default:
		return 2
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(tokenize.Canonicalize(s), tokenize.Canonicalize(substr))
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// CompareConfigurations returns three rows for a before/after
// comparison table: a random-baseline stand-in with fixed figures (no
// search is run for it), then keyword-benchmark runs under a BM25-only
// weighting and under the full hybrid default weighting.
func CompareConfigurations(search SearchFunc, testCases []TestCase) ([]BenchmarkResults, error) {
	random := BenchmarkResults{
		Name:           "no memory (random)",
		PrecisionAtK:   0.10,
		RecallAtK:      0.10,
		F1Score:        0.10,
		AvgLatencyMs:   0.5,
		QueriesTested:  len(testCases),
		PerfectQueries: 0,
	}

	bm25Cfg := retrieval.DefaultConfig()
	bm25Cfg.WeightBM25 = 1.0
	bm25Cfg.WeightVector = 0
	bm25Cfg.WeightImportance = 0
	bm25Cfg.WeightRecency = 0
	bm25Cfg.WeightGraph = 0
	bm25Results, err := RunKeywordBenchmark("bm25 only", search, testCases, bm25Cfg)
	if err != nil {
		return nil, err
	}

	hybridResults, err := RunKeywordBenchmark("hybrid", search, testCases, retrieval.DefaultConfig())
	if err != nil {
		return nil, err
	}

	return []BenchmarkResults{random, bm25Results, hybridResults}, nil
}
