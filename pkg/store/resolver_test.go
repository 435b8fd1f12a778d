package store

import (
	"context"
	"errors"
	"testing"

	"github.com/open-statutes/trellis/pkg/law"
)

func existsIn(taken ...law.ID) ExistsFunc {
	set := make(map[law.ID]struct{}, len(taken))
	for _, id := range taken {
		set[id] = struct{}{}
	}
	return func(_ context.Context, id law.ID) (bool, error) {
		_, ok := set[id]
		return ok, nil
	}
}

func testNode(id law.ID) *law.Node {
	return &law.Node{ID: id, Classification: law.ClassificationContent, LevelTag: "SECTION"}
}

func TestResolve_Ignore(t *testing.T) {
	n := testNode("us/az/statutes/title=1/section=1-101")
	res, err := Resolve(context.Background(), n, PolicyIgnore, existsIn(n.ID))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Node != nil {
		t.Fatal("ignore must not produce a node to insert")
	}
	if res.Existing != n.ID {
		t.Fatalf("expected existing identity %q, got %q", n.ID, res.Existing)
	}
}

func TestResolve_Error(t *testing.T) {
	n := testNode("us/az/statutes/title=1/section=1-101")
	_, err := Resolve(context.Background(), n, PolicyError, existsIn(n.ID))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestResolve_Version_FirstFreeSlot(t *testing.T) {
	n := testNode("us/az/statutes/title=1/section=1-101")
	res, err := Resolve(context.Background(), n, PolicyVersion, existsIn(n.ID))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Node == nil || res.Node.ID != "us/az/statutes/title=1/section=1-101-v_2" {
		t.Fatalf("expected -v_2 identity, got %+v", res.Node)
	}
}

func TestResolve_Version_SkipsTakenSlots(t *testing.T) {
	base := law.ID("us/az/statutes/title=1/section=1-101")
	res, err := Resolve(context.Background(), testNode(base), PolicyVersion,
		existsIn(base, base.WithVersion(2), base.WithVersion(3)))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Node.ID != base.WithVersion(4) {
		t.Fatalf("expected -v_4 identity, got %q", res.Node.ID)
	}
}

func TestResolve_Version_StripsExistingSuffix(t *testing.T) {
	base := law.ID("us/az/statutes/title=1/section=1-101")
	// Re-insert of a node that was already versioned once.
	res, err := Resolve(context.Background(), testNode(base.WithVersion(2)), PolicyVersion,
		existsIn(base, base.WithVersion(2)))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.Node.ID != base.WithVersion(3) {
		t.Fatalf("expected -v_3 identity without suffix stacking, got %q", res.Node.ID)
	}
}

func TestResolve_Version_Exhausted(t *testing.T) {
	base := law.ID("us/az/statutes/title=1/section=1-101")
	taken := []law.ID{base}
	for v := 2; v <= MaxVersionProbes; v++ {
		taken = append(taken, base.WithVersion(v))
	}
	_, err := Resolve(context.Background(), testNode(base), PolicyVersion, existsIn(taken...))
	if !errors.Is(err, ErrVersionExhausted) {
		t.Fatalf("expected ErrVersionExhausted, got %v", err)
	}
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	n := testNode("us/az/statutes/title=1/section=1-101")
	res, err := Resolve(context.Background(), n, PolicyVersion, existsIn(n.ID))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.ID != "us/az/statutes/title=1/section=1-101" {
		t.Fatalf("input node mutated to %q", n.ID)
	}
	if res.Node == n {
		t.Fatal("resolution must carry a copy, not the input pointer")
	}
}

func TestParsePolicy(t *testing.T) {
	for _, raw := range []string{"ignore", "version", "error"} {
		if _, err := ParsePolicy(raw); err != nil {
			t.Fatalf("expected %q to parse, got %v", raw, err)
		}
	}
	if _, err := ParsePolicy("upsert"); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}
