package eval

import (
	"testing"

	"github.com/kittclouds/memengine/pkg/memtypes"
	"github.com/kittclouds/memengine/pkg/retrieval"
)

func resultFor(id, content string, score float64) retrieval.Result {
	return retrieval.Result{
		Memory: memtypes.Memory{ID: id, Content: content},
		Score:  score,
	}
}

func TestRunKeywordBenchmarkScoresPrecisionAndRecall(t *testing.T) {
	search := func(query string, cfg retrieval.Config) ([]retrieval.Result, error) {
		return []retrieval.Result{
			resultFor("1", "the user prefers dark mode", 0.9),
			resultFor("2", "totally unrelated content", 0.5),
		}, nil
	}
	cases := []TestCase{
		{Query: "what does the user prefer", ExpectedKeywords: []string{"prefers", "preference"}},
	}

	results, err := RunKeywordBenchmark("test", search, cases, retrieval.DefaultConfig())
	if err != nil {
		t.Fatalf("RunKeywordBenchmark: %v", err)
	}
	if results.QueriesTested != 1 {
		t.Fatalf("expected 1 query tested, got %d", results.QueriesTested)
	}
	if len(results.QueryResults) != 1 {
		t.Fatalf("expected 1 query result, got %d", len(results.QueryResults))
	}
	qr := results.QueryResults[0]
	if qr.RelevantRetrieved != 1 {
		t.Fatalf("expected exactly 1 relevant retrieved (the 'prefers' hit), got %d", qr.RelevantRetrieved)
	}
	if qr.Precision != 0.5 {
		t.Fatalf("expected precision 0.5 (1 of 2 retrieved relevant), got %f", qr.Precision)
	}
}

func TestRunKeywordBenchmarkEmptyTestCasesReturnsZeroValue(t *testing.T) {
	search := func(query string, cfg retrieval.Config) ([]retrieval.Result, error) {
		t.Fatal("search should never be called with zero test cases")
		return nil, nil
	}
	results, err := RunKeywordBenchmark("empty", search, nil, retrieval.DefaultConfig())
	if err != nil {
		t.Fatalf("RunKeywordBenchmark: %v", err)
	}
	if results.QueriesTested != 0 {
		t.Fatalf("expected 0 queries tested, got %d", results.QueriesTested)
	}
}

func TestRunKeywordBenchmarkPropagatesSearchError(t *testing.T) {
	boom := errFixture("search backend unavailable")
	search := func(query string, cfg retrieval.Config) ([]retrieval.Result, error) {
		return nil, boom
	}
	cases := []TestCase{{Query: "anything", ExpectedKeywords: []string{"x"}}}
	_, err := RunKeywordBenchmark("broken", search, cases, retrieval.DefaultConfig())
	if err == nil {
		t.Fatal("expected the search error to propagate")
	}
}

func TestRunKeywordBenchmarkNoExpectedKeywordsAssumesFullRecall(t *testing.T) {
	search := func(query string, cfg retrieval.Config) ([]retrieval.Result, error) {
		return []retrieval.Result{resultFor("1", "anything at all", 0.5)}, nil
	}
	cases := []TestCase{{Query: "anything", ExpectedKeywords: nil}}
	results, err := RunKeywordBenchmark("no-keywords", search, cases, retrieval.DefaultConfig())
	if err != nil {
		t.Fatalf("RunKeywordBenchmark: %v", err)
	}
	if results.QueryResults[0].Recall != 1.0 {
		t.Fatalf("expected recall 1.0 when no expected keywords are given, got %f", results.QueryResults[0].Recall)
	}
}

func TestCompareConfigurationsReturnsThreeNamedResults(t *testing.T) {
	search := func(query string, cfg retrieval.Config) ([]retrieval.Result, error) {
		return []retrieval.Result{resultFor("1", "the user prefers dark mode", 0.9)}, nil
	}
	cases := []TestCase{{Query: "preference", ExpectedKeywords: []string{"prefers"}}}

	results, err := CompareConfigurations(search, cases)
	if err != nil {
		t.Fatalf("CompareConfigurations: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 comparison rows, got %d", len(results))
	}
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"no memory (random)", "bm25 only", "hybrid"} {
		if !names[want] {
			t.Fatalf("expected a %q row in the comparison, got %+v", want, names)
		}
	}
}

type errFixture string

func (e errFixture) Error() string { return string(e) }
