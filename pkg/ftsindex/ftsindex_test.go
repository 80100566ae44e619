package ftsindex

import (
	"testing"

	"github.com/kittclouds/memengine/internal/store"
	"github.com/kittclouds/memengine/pkg/memtypes"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	gs, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { gs.Close() })
	idx, err := New(gs.DB())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx
}

func TestIndexDocAndSearch(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.IndexDoc(Doc{ID: "m1", Content: "the user prefers dark mode in the editor", MemoryType: memtypes.Preference}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}
	if err := idx.IndexDoc(Doc{ID: "m2", Content: "quarterly revenue grew by twelve percent", MemoryType: memtypes.Fact}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}

	results, err := idx.Search("dark mode", SearchConfig{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "m1" {
		t.Fatalf("expected only m1 to match 'dark mode', got %+v", results)
	}
}

func TestSearchFiltersByMemoryType(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.IndexDoc(Doc{ID: "m1", Content: "project deadline is next friday", MemoryType: memtypes.Todo}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}
	if err := idx.IndexDoc(Doc{ID: "m2", Content: "project deadline was moved", MemoryType: memtypes.Fact}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}

	todoType := memtypes.Todo
	results, err := idx.Search("project deadline", SearchConfig{MemoryType: &todoType})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "m1" {
		t.Fatalf("expected only the todo-typed doc to match, got %+v", results)
	}
}

func TestIndexDocRejectsEmptyContent(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.IndexDoc(Doc{ID: "m1", Content: "   "}); err == nil {
		t.Fatal("expected an error indexing empty content")
	}
}

func TestIndexDocUpsertReplacesPriorContent(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.IndexDoc(Doc{ID: "m1", Content: "original wording about bananas"}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}
	if err := idx.IndexDoc(Doc{ID: "m1", Content: "revised wording about apples"}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}

	results, err := idx.Search("bananas", SearchConfig{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected the old content to no longer match after upsert, got %+v", results)
	}
	results, err = idx.Search("apples", SearchConfig{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the revised content to match, got %+v", results)
	}
}

func TestDelete(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.IndexDoc(Doc{ID: "m1", Content: "a memory to be removed"}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}
	if err := idx.Delete("m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	results, err := idx.Search("removed", SearchConfig{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results after delete, got %+v", results)
	}
}

func TestFuzzySearchMatchesMisspelling(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.IndexDoc(Doc{ID: "m1", Content: "remember to buy bananas tomorrow"}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}
	results, err := idx.Search("bananaz", SearchConfig{Fuzzy: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected fuzzy search to tolerate a 1-edit misspelling, got %+v", results)
	}
}

func TestReindexAllReplacesContents(t *testing.T) {
	idx := newTestIndex(t)
	if err := idx.IndexDoc(Doc{ID: "m1", Content: "stale content"}); err != nil {
		t.Fatalf("IndexDoc: %v", err)
	}
	if err := idx.ReindexAll([]Doc{{ID: "m2", Content: "fresh content about kittens"}}); err != nil {
		t.Fatalf("ReindexAll: %v", err)
	}

	results, err := idx.Search("stale", SearchConfig{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected stale content cleared by ReindexAll, got %+v", results)
	}
	results, err = idx.Search("kittens", SearchConfig{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "m2" {
		t.Fatalf("expected fresh content to be searchable after ReindexAll, got %+v", results)
	}
}

func TestSearchEmptyQueryReturnsNil(t *testing.T) {
	idx := newTestIndex(t)
	results, err := idx.Search("   ", SearchConfig{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results for an empty query, got %+v", results)
	}
}
