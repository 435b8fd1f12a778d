package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/store"
)

func seedRoots(t *testing.T, s *Storage) (jurisdiction, corpus *law.Node) {
	t.Helper()
	j, c, err := law.RootNodes("us", "az", "statutes", "https://www.azleg.gov")
	if err != nil {
		t.Fatalf("RootNodes: %v", err)
	}
	if _, err := s.Insert(context.Background(), j, store.PolicyError); err != nil {
		t.Fatalf("insert jurisdiction: %v", err)
	}
	if _, err := s.Insert(context.Background(), c, store.PolicyError); err != nil {
		t.Fatalf("insert corpus: %v", err)
	}
	return j, c
}

func mustStructure(t *testing.T, parent law.ID, level, number, name string) *law.Node {
	t.Helper()
	n, err := law.NewStructureNode(parent, level, number, name, "")
	if err != nil {
		t.Fatalf("NewStructureNode: %v", err)
	}
	return n
}

func TestInsertAndGet(t *testing.T) {
	s := New()
	_, c := seedRoots(t, s)

	title := mustStructure(t, c.ID, "title", "1", "Title 1")
	persisted, err := s.Insert(context.Background(), title, store.PolicyError)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if persisted.CreatedAt.IsZero() || persisted.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set on insert")
	}

	got, err := s.Get(context.Background(), title.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Title 1" {
		t.Fatalf("unexpected name %q", got.Name)
	}

	if _, err := s.Get(context.Background(), "us/az/statutes/title=99"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsert_IgnoreIsIdempotent(t *testing.T) {
	s := New()
	_, c := seedRoots(t, s)

	title := mustStructure(t, c.ID, "title", "1", "Title 1")
	if _, err := s.Insert(context.Background(), title, store.PolicyIgnore); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	retry := mustStructure(t, c.ID, "title", "1", "Title 1 retried with different name")
	returned, err := s.Insert(context.Background(), retry, store.PolicyIgnore)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if returned.ID != title.ID {
		t.Fatalf("ignore must return the existing identity, got %q", returned.ID)
	}
	if returned.Name != "Title 1" {
		t.Fatalf("existing row content changed: %q", returned.Name)
	}

	stats, err := s.Stats(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 { // corpus root + title
		t.Fatalf("expected 2 rows under corpus, got %d", stats.Total)
	}
}

func TestInsert_VersionAssignsSuffixes(t *testing.T) {
	s := New()
	_, c := seedRoots(t, s)

	for i, wantID := range []law.ID{
		"us/az/statutes/title=1",
		"us/az/statutes/title=1-v_2",
		"us/az/statutes/title=1-v_3",
	} {
		n := mustStructure(t, c.ID, "title", "1", "Title 1")
		persisted, err := s.Insert(context.Background(), n, store.PolicyVersion)
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if persisted.ID != wantID {
			t.Fatalf("insert %d: expected %q, got %q", i, wantID, persisted.ID)
		}
	}
}

func TestInsert_ErrorPolicySurfacesDuplicate(t *testing.T) {
	s := New()
	_, c := seedRoots(t, s)

	n := mustStructure(t, c.ID, "title", "1", "Title 1")
	if _, err := s.Insert(context.Background(), n, store.PolicyError); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.Insert(context.Background(), mustStructure(t, c.ID, "title", "1", "Title 1"), store.PolicyError); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestInsertMany_PreservesOrder(t *testing.T) {
	clock := scriptedClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	s := New(WithClock(clock))
	_, c := seedRoots(t, s)

	title := mustStructure(t, c.ID, "title", "1", "Title 1")
	chapter := mustStructure(t, title.ID, "chapter", "1", "Chapter 1")
	persisted, err := s.InsertMany(context.Background(), []*law.Node{title, chapter}, store.PolicyIgnore)
	if err != nil {
		t.Fatalf("insert many: %v", err)
	}
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted nodes, got %d", len(persisted))
	}
	if !persisted[0].CreatedAt.Before(persisted[1].CreatedAt) {
		t.Fatal("batched insert reordered nodes relative to submission order")
	}
}

func TestChildrenOf_LexicographicOrder(t *testing.T) {
	s := New()
	_, c := seedRoots(t, s)

	title := mustStructure(t, c.ID, "title", "1", "Title 1")
	chapter := mustStructure(t, title.ID, "chapter", "1", "Chapter 1")
	if _, err := s.InsertMany(context.Background(), []*law.Node{title, chapter}, store.PolicyError); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for _, num := range []string{"1-103", "1-101", "1-102"} {
		n, err := law.NewContentNode(chapter.ID, num, "Section "+num, "", "A.R.S. § "+num)
		if err != nil {
			t.Fatalf("NewContentNode: %v", err)
		}
		if _, err := s.Insert(context.Background(), n, store.PolicyError); err != nil {
			t.Fatalf("insert section: %v", err)
		}
	}

	children, err := s.ChildrenOf(context.Background(), chapter.ID)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(children))
	}
	for i, want := range []string{"1-101", "1-102", "1-103"} {
		if children[i].Number != want {
			t.Fatalf("child %d = %q, want %q", i, children[i].Number, want)
		}
	}
}

func TestScanPrefix_SelectsSubtree(t *testing.T) {
	s := New()
	_, c := seedRoots(t, s)

	t1 := mustStructure(t, c.ID, "title", "1", "Title 1")
	t2 := mustStructure(t, c.ID, "title", "2", "Title 2")
	ch := mustStructure(t, t1.ID, "chapter", "1", "Chapter 1")
	if _, err := s.InsertMany(context.Background(), []*law.Node{t1, t2, ch}, store.PolicyError); err != nil {
		t.Fatalf("seed: %v", err)
	}

	nodes, err := store.CollectPrefix(context.Background(), s, "us/az/statutes/title=1/*")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(nodes) != 2 { // title=1 and its chapter, not title=2
		t.Fatalf("expected 2 nodes under title=1, got %d", len(nodes))
	}
}

func TestUpdate_MutableFieldsOnly(t *testing.T) {
	s := New()
	_, c := seedRoots(t, s)

	n, err := law.NewContentNode(c.ID, "1-101", "Definitions", "", "A.R.S. § 1-101", law.WithLevel("section"))
	if err != nil {
		t.Fatalf("NewContentNode: %v", err)
	}
	if _, err := s.Insert(context.Background(), n, store.PolicyError); err != nil {
		t.Fatalf("insert: %v", err)
	}

	text := &law.NodeText{}
	text.AddParagraph("Text discovered on a second pass.")
	n.Text = text
	n.Status = law.StatusReserved
	if err := s.Update(context.Background(), n); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasText() || got.Status != law.StatusReserved {
		t.Fatalf("update did not apply: %+v", got)
	}

	missing := *n
	missing.ID = "us/az/statutes/section=none"
	if err := s.Update(context.Background(), &missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClean_RemovesOnlyTargetCorpus(t *testing.T) {
	s := New()
	_, c := seedRoots(t, s)

	jOther, cOther, err := law.RootNodes("us", "de", "code", "")
	if err != nil {
		t.Fatalf("RootNodes: %v", err)
	}
	if _, err := s.InsertMany(context.Background(), []*law.Node{jOther, cOther}, store.PolicyError); err != nil {
		t.Fatalf("seed other corpus: %v", err)
	}

	if err := s.Clean(context.Background(), c.ID); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if _, err := s.Get(context.Background(), c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("cleaned corpus root still present")
	}
	if _, err := s.Get(context.Background(), cOther.ID); err != nil {
		t.Fatalf("unrelated corpus was touched: %v", err)
	}
}

func scriptedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}
