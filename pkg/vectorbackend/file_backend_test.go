package vectorbackend

import (
	"path/filepath"
	"testing"
)

func TestFileBackendUpsertAndSearch(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir, 3)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}

	if err := fb.Upsert("a", []float32{1, 0, 0}, "payload-a"); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := fb.Upsert("b", []float32{0, 1, 0}, "payload-b"); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	matches, err := fb.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "a" {
		t.Fatalf("expected closest match to be 'a', got %q", matches[0].ID)
	}
	if matches[0].Payload != "payload-a" {
		t.Fatalf("expected payload to round-trip, got %q", matches[0].Payload)
	}
}

func TestFileBackendSearchRespectsK(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir, 2)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	for _, id := range []string{"x", "y", "z"} {
		if err := fb.Upsert(id, []float32{1, 1}, ""); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	matches, err := fb.Search([]float32{1, 1}, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected k=2 matches, got %d", len(matches))
	}
}

func TestFileBackendDelete(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir, 2)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	if err := fb.Upsert("a", []float32{1, 0}, ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := fb.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	matches, err := fb.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches after delete, got %d", len(matches))
	}
}

func TestFileBackendDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir, 3)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	if err := fb.Upsert("a", []float32{1, 2}, ""); err == nil {
		t.Fatal("expected a dimension mismatch error")
	}
}

func TestFileBackendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	fb, err := NewFileBackend(dir, 2)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	if err := fb.Upsert("a", []float32{1, 0}, "hello"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	reopened, err := NewFileBackend(dir, 2)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	matches, err := reopened.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search after reopen: %v", err)
	}
	if len(matches) != 1 || matches[0].Payload != "hello" {
		t.Fatalf("expected payload to persist across reopen, got %+v", matches)
	}
	if filepath.Clean(reopened.dir) != filepath.Clean(dir) {
		t.Fatalf("expected backend dir %q, got %q", dir, reopened.dir)
	}
}
