package routes

import (
	"testing"

	"github.com/open-statutes/trellis/pkg/law"
)

func TestBelongsToCorpus(t *testing.T) {
	const corpus = law.ID("us/az/statutes")

	for _, id := range []law.ID{
		"us/az",
		"us/az/statutes",
		"us/az/statutes/title=1",
		"us/az/statutes/title=1/section=1-101",
	} {
		if !belongsToCorpus(id, corpus) {
			t.Fatalf("expected %q to belong to %q", id, corpus)
		}
	}

	for _, id := range []law.ID{
		"us",
		"us/nm",
		"us/az/codes",
		"us/az/codes/title=1",
		"uk/en/statutes/title=1",
	} {
		if belongsToCorpus(id, corpus) {
			t.Fatalf("expected %q to be rejected for %q", id, corpus)
		}
	}
}
