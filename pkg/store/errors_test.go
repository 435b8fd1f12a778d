package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinels_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrDuplicate,
		ErrVersionExhausted,
		ErrUnknownPolicy,
		ErrStorageUnavailable,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Fatalf("sentinel %v matches %v", a, b)
			}
		}
	}
}

func TestSentinels_SurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: %w", ErrStorageUnavailable, errors.New("connection refused"))
	if !errors.Is(wrapped, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable in %v", wrapped)
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("unexpected ErrNotFound in %v", wrapped)
	}
}
