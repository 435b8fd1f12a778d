package law

import (
	"errors"
	"testing"
)

func TestNewStructureNode(t *testing.T) {
	n, err := NewStructureNode("us/az/statutes", "Title", "1", "Title 1 - General Provisions", "https://example.test/title1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.ID != "us/az/statutes/title=1" {
		t.Fatalf("unexpected id %q", n.ID)
	}
	if n.Classification != ClassificationStructure {
		t.Fatalf("expected structure classification, got %q", n.Classification)
	}
	if n.LevelTag != "TITLE" {
		t.Fatalf("expected level tag TITLE, got %q", n.LevelTag)
	}
	if n.Parent != "us/az/statutes" {
		t.Fatalf("unexpected parent %q", n.Parent)
	}
	if n.Status != "" {
		t.Fatalf("expected empty status, got %q", n.Status)
	}
}

func TestNewStructureNode_IgnoresContentOptions(t *testing.T) {
	text := &NodeText{}
	text.AddParagraph("Text that belongs on a content node.")

	n, err := NewStructureNode("us/az/statutes", "title", "2", "Title 2", "",
		WithText(text), WithAddendum(&Addendum{Kind: AddendumHistory, Text: "Laws 2026, ch. 1"}))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.Text != nil || n.Addendum != nil {
		t.Fatalf("structure node must stay a pure container, got text=%v addendum=%v", n.Text, n.Addendum)
	}
}

func TestNewStructureNode_InvalidNumber(t *testing.T) {
	_, err := NewStructureNode("us/az/statutes", "title", "1/2", "bad", "")
	if !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
}

func TestNewContentNode_Defaults(t *testing.T) {
	text := &NodeText{}
	text.AddParagraph("As used in this chapter, person means any individual.")

	n, err := NewContentNode("us/az/statutes/title=1/chapter=1", "1-101", "Definitions",
		"https://example.test/1-101", "A.R.S. § 1-101", WithText(text))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.ID != "us/az/statutes/title=1/chapter=1/section=1-101" {
		t.Fatalf("unexpected id %q", n.ID)
	}
	if n.Classification != ClassificationContent {
		t.Fatalf("expected content classification, got %q", n.Classification)
	}
	if n.LevelTag != "SECTION" {
		t.Fatalf("expected default SECTION level, got %q", n.LevelTag)
	}
	if !n.HasText() {
		t.Fatal("expected node to carry text")
	}
}

func TestNewContentNode_LevelOverride(t *testing.T) {
	n, err := NewContentNode("us/de/code/title=1", "101", "Rules", "", "1 Del. C. § 101", WithLevel("rule"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.ID != "us/de/code/title=1/rule=101" {
		t.Fatalf("unexpected id %q", n.ID)
	}
	if n.LevelTag != "RULE" {
		t.Fatalf("expected RULE level tag, got %q", n.LevelTag)
	}
}

func TestStatusClassification_Keyword(t *testing.T) {
	n, err := NewStructureNode("us/az/statutes/title=1", "chapter", "2", "Chapter 2 - REPEALED", "")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.Status != StatusReserved {
		t.Fatalf("expected reserved status, got %q", n.Status)
	}
}

func TestStatusClassification_ExplicitWins(t *testing.T) {
	n, err := NewStructureNode("us/az/statutes/title=1", "chapter", "3", "Chapter 3 - REPEALED", "",
		WithStatus("active"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.Status != "active" {
		t.Fatalf("explicit status overridden: got %q", n.Status)
	}
}

func TestStatusClassification_CustomRules(t *testing.T) {
	rules := DefaultStatusRules.Extend(map[string]string{"VACATED": StatusReserved})
	n, err := NewContentNode("us/id/statutes/title=1/chapter=1", "1-105", "1-105 VACATED", "", "",
		WithStatusRules(rules))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n.Status != StatusReserved {
		t.Fatalf("expected reserved status from custom rule, got %q", n.Status)
	}
}

func TestRootNodes(t *testing.T) {
	j, c, err := RootNodes("us", "az", "statutes", "https://www.azleg.gov")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if j.ID != "us/az" || c.ID != "us/az/statutes" {
		t.Fatalf("unexpected root ids %q %q", j.ID, c.ID)
	}
	if j.Parent != "" {
		t.Fatalf("jurisdiction node must not have a parent, got %q", j.Parent)
	}
	if c.Parent != j.ID {
		t.Fatalf("corpus parent should be the jurisdiction, got %q", c.Parent)
	}
	if !j.IsRoot() || !c.IsRoot() {
		t.Fatal("root nodes must report IsRoot")
	}
}

func TestRootNodes_RejectsSeparator(t *testing.T) {
	if _, _, err := RootNodes("us", "a/z", "statutes", ""); !errors.Is(err, ErrMalformedIdentifier) {
		t.Fatalf("expected ErrMalformedIdentifier, got %v", err)
	}
}
