package idgen

import "testing"

func TestNewProducesDistinctHexIDs(t *testing.T) {
	a := New()
	b := New()
	if a == b {
		t.Fatal("expected two generated IDs to differ")
	}
	if len(a) != 32 {
		t.Fatalf("expected a 32-character hex ID, got %d chars: %q", len(a), a)
	}
	for _, c := range a {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isHex {
			t.Fatalf("expected a lowercase hex string, found %q in %q", c, a)
		}
	}
}
