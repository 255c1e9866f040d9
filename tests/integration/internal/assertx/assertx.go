package assertx

import (
	"slices"
	"testing"
)

// Equal fails if want != got.
func Equal[T comparable](t *testing.T, want, got T) {
	t.Helper()
	if want != got {
		t.Fatalf("want %v, got %v", want, got)
	}
}

// Contains fails unless v is one of items.
func Contains[T comparable](t *testing.T, items []T, v T) {
	t.Helper()
	if !slices.Contains(items, v) {
		t.Fatalf("want %v in %v", v, items)
	}
}
