package errs

import (
	"errors"
	"testing"
)

func TestNotFoundfKindAndMessage(t *testing.T) {
	err := NotFoundf("memory %s not found", "m1")
	if !Is(err, KindNotFound) {
		t.Fatal("expected KindNotFound")
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestStorageWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage(cause, "save memory %s", "m1")
	if !Is(err, KindStorage) {
		t.Fatal("expected KindStorage")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to see through to the wrapped cause")
	}
}

func TestIsDistinguishesKinds(t *testing.T) {
	err := Validationf("bad input")
	if Is(err, KindStorage) {
		t.Fatal("expected a validation error not to match KindStorage")
	}
	if !Is(err, KindValidation) {
		t.Fatal("expected a validation error to match KindValidation")
	}
}

func TestErrorIsMatchesSameKindOnly(t *testing.T) {
	a := NotFoundf("a")
	b := NotFoundf("b")
	c := Validationf("c")
	if !errors.Is(a, b) {
		t.Fatal("expected two NotFound errors to satisfy errors.Is against each other")
	}
	if errors.Is(a, c) {
		t.Fatal("expected a NotFound error not to satisfy errors.Is against a Validation error")
	}
}

func TestKindStringRoundTrip(t *testing.T) {
	if KindNotFound.String() != "not_found" {
		t.Fatalf("unexpected Kind string: %s", KindNotFound.String())
	}
	if KindUnknown.String() != "unknown" {
		t.Fatalf("unexpected zero-value Kind string: %s", KindUnknown.String())
	}
}
