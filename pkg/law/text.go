package law

import (
	"fmt"
	"strings"
)

// NodeText is the ordered paragraph sequence of a content node. Order is
// significant and preserved verbatim from the source page.
type NodeText struct {
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is one unit of statutory text with a coarse semantic tag.
type Paragraph struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Tag  string `json:"tag,omitempty"`
}

// Paragraph tags produced by the default classifier.
const (
	TagDefinition = "definition"
	TagPenalty    = "penalty"
	TagProcedure  = "procedure"
	TagException  = "exception"
	TagGeneral    = "general"
)

// AddParagraph appends a paragraph, assigning its positional id and a
// semantic tag from the default rule table.
func (t *NodeText) AddParagraph(text string) {
	t.AddParagraphTagged(text, ClassifyParagraph(text, DefaultParagraphRules))
}

// AddParagraphTagged appends a paragraph with an explicit tag.
func (t *NodeText) AddParagraphTagged(text, tag string) {
	t.Paragraphs = append(t.Paragraphs, Paragraph{
		ID:   fmt.Sprintf("#p-%d", len(t.Paragraphs)),
		Text: text,
		Tag:  tag,
	})
}

// Plain joins the paragraph texts in order. Used by the duplicate-subtree
// check to compare text bodies.
func (t *NodeText) Plain() string {
	if t == nil || len(t.Paragraphs) == 0 {
		return ""
	}
	parts := make([]string, len(t.Paragraphs))
	for i, p := range t.Paragraphs {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// ParagraphRule assigns a tag when any of its phrases occurs in a paragraph.
// Rules are checked in order, first match wins.
type ParagraphRule struct {
	Tag     string
	Phrases []string
}

// DefaultParagraphRules mirrors the phrase heuristics the extraction layer
// historically used. Like status keywords, the table is data so corpora can
// swap in their own.
var DefaultParagraphRules = []ParagraphRule{
	{Tag: TagDefinition, Phrases: []string{"as used in", "means", "for purposes of"}},
	{Tag: TagPenalty, Phrases: []string{"fine", "imprisonment", "penalty", "violation"}},
	{Tag: TagProcedure, Phrases: []string{"shall", "must", "required to", "procedure"}},
	{Tag: TagException, Phrases: []string{"except", "unless", "provided that"}},
}

// ClassifyParagraph tags a paragraph by phrase matching, falling back to
// the general tag.
func ClassifyParagraph(text string, rules []ParagraphRule) string {
	if text == "" {
		return TagGeneral
	}
	lower := strings.ToLower(text)
	for _, rule := range rules {
		for _, phrase := range rule.Phrases {
			if strings.Contains(lower, phrase) {
				return rule.Tag
			}
		}
	}
	return TagGeneral
}

// AddendumKind distinguishes the origin of addendum text.
type AddendumKind string

const (
	AddendumHistory AddendumKind = "history"
	AddendumSource  AddendumKind = "source"
)

// Addendum holds legislative history or source notes. It is kept apart from
// the paragraph sequence so statute text is never mixed with annotations.
type Addendum struct {
	Kind AddendumKind `json:"kind"`
	Text string       `json:"text"`
}

// Reference is a cross-reference extracted from a paragraph: either another
// node in some corpus or an external citation that does not resolve to one.
type Reference struct {
	Target      ID     `json:"target,omitempty"`
	Citation    string `json:"citation,omitempty"`
	ParagraphID string `json:"paragraph_id"`
}
