package scorepool

import "testing"

func TestGetReturnsEmptyMap(t *testing.T) {
	m := Get()
	defer Put(m)
	if len(m) != 0 {
		t.Fatalf("expected a fresh map from Get, got %d entries", len(m))
	}
}

func TestPutClearsEntriesForNextGet(t *testing.T) {
	m := Get()
	m["a"] = 1.0
	m["b"] = 2.0
	Put(m)

	reused := Get()
	defer Put(reused)
	if len(reused) != 0 {
		t.Fatalf("expected Get to return a cleared map after Put, got %v", reused)
	}
}
