package law

import (
	"fmt"
	"strings"
	"time"
)

// Classification distinguishes organizational containers from nodes that
// carry statutory text of their own.
type Classification string

const (
	ClassificationStructure Classification = "structure"
	ClassificationContent   Classification = "content"
)

// Level tags reserved for the two root node kinds.
const (
	LevelJurisdiction = "JURISDICTION"
	LevelCorpus       = "CORPUS"
)

// StatusReserved marks repealed, omitted, transferred or otherwise inactive
// provisions. Detection is keyword-driven, see status.go.
const StatusReserved = "reserved"

// Node is one unit of the legislative hierarchy. Structure nodes organize
// (titles, chapters, articles); content nodes terminate the tree and carry
// the statute text. Children are never stored on the node: they are always
// derived by querying on Parent, so the tree cannot drift into a dual-write
// inconsistency.
type Node struct {
	ID             ID             `json:"id"`
	Classification Classification `json:"classification"`
	LevelTag       string         `json:"level_tag"`
	Number         string         `json:"number"`
	Name           string         `json:"name"`
	Link           string         `json:"link"`
	Status         string         `json:"status,omitempty"`
	Citation       string         `json:"citation,omitempty"`
	Text           *NodeText      `json:"text,omitempty"`
	Addendum       *Addendum      `json:"addendum,omitempty"`
	References     []Reference    `json:"references,omitempty"`
	Parent         ID             `json:"parent,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsRoot reports whether the node is one of the two per-corpus roots. Roots
// are the only nodes allowed to have an empty parent.
func (n *Node) IsRoot() bool {
	return n.LevelTag == LevelJurisdiction || n.LevelTag == LevelCorpus
}

// HasText reports whether the node carries at least one non-empty paragraph.
func (n *Node) HasText() bool {
	return n.Text != nil && len(n.Text.Paragraphs) > 0
}

// NewStructureNode builds an organizational node one level below parent.
// The identity is derived from the parent identity, so a well-formed parent
// guarantees a well-formed child. When no explicit status is given the
// display name is scanned for reserved keywords using rules. Structure nodes
// are pure containers: WithText and WithAddendum are content-only options
// and are ignored here.
func NewStructureNode(parent ID, level, number, name, link string, opts ...NodeOption) (*Node, error) {
	id, err := DeriveChild(parent, level, number)
	if err != nil {
		return nil, fmt.Errorf("structure node under %q: %w", parent, err)
	}
	n := &Node{
		ID:             id,
		Classification: ClassificationStructure,
		LevelTag:       strings.ToUpper(level),
		Number:         number,
		Name:           name,
		Link:           link,
		Parent:         parent,
	}
	applyOptions(n, collectOptions(opts))
	return n, nil
}

// NewContentNode builds a terminal node carrying statutory text. Content
// nodes default to the "section" level and require a citation; text and
// addendum may arrive on a later extraction pass and are therefore optional.
func NewContentNode(parent ID, number, name, link, citation string, opts ...NodeOption) (*Node, error) {
	o := collectOptions(opts)
	level := o.level
	if level == "" {
		level = "section"
	}
	id, err := DeriveChild(parent, level, number)
	if err != nil {
		return nil, fmt.Errorf("content node under %q: %w", parent, err)
	}
	n := &Node{
		ID:             id,
		Classification: ClassificationContent,
		LevelTag:       strings.ToUpper(level),
		Number:         number,
		Name:           name,
		Link:           link,
		Citation:       citation,
		Text:           o.text,
		Addendum:       o.addendum,
		Parent:         parent,
	}
	applyOptions(n, o)
	return n, nil
}

// RootNodes builds the jurisdiction and corpus nodes for one corpus. They
// must be inserted, in order, before any other node of the corpus: every
// orphan and path-to-root check treats reaching one of them as success.
func RootNodes(country, jurisdiction, corpus, baseURL string) (*Node, *Node, error) {
	for _, part := range []string{country, jurisdiction, corpus} {
		if part == "" || strings.ContainsAny(part, Separator+"=") {
			return nil, nil, fmt.Errorf("%w: root segment %q", ErrMalformedIdentifier, part)
		}
	}
	jurisdictionID := ID(country + Separator + jurisdiction)
	corpusID := ID(string(jurisdictionID) + Separator + corpus)

	j := &Node{
		ID:             jurisdictionID,
		Classification: ClassificationStructure,
		LevelTag:       LevelJurisdiction,
		Number:         jurisdiction,
		Name:           strings.ToUpper(jurisdiction),
		Link:           baseURL,
	}
	c := &Node{
		ID:             corpusID,
		Classification: ClassificationStructure,
		LevelTag:       LevelCorpus,
		Number:         corpus,
		Name:           strings.ToUpper(jurisdiction) + " " + titleCase(corpus),
		Link:           baseURL,
		Parent:         jurisdictionID,
	}
	return j, c, nil
}

// NodeOption configures optional node attributes at construction time.
type NodeOption func(*nodeOptions)

type nodeOptions struct {
	status   string
	citation string
	text     *NodeText
	addendum *Addendum
	level    string
	rules    StatusRules
}

func WithStatus(status string) NodeOption     { return func(o *nodeOptions) { o.status = status } }
func WithCitation(citation string) NodeOption { return func(o *nodeOptions) { o.citation = citation } }
func WithText(t *NodeText) NodeOption         { return func(o *nodeOptions) { o.text = t } }
func WithAddendum(a *Addendum) NodeOption     { return func(o *nodeOptions) { o.addendum = a } }

// WithLevel overrides the "section" default on content nodes, for corpora
// whose terminal units are rules, paragraphs or articles.
func WithLevel(level string) NodeOption { return func(o *nodeOptions) { o.level = level } }

// WithStatusRules swaps in a jurisdiction-specific keyword table for
// reserved-status detection.
func WithStatusRules(rules StatusRules) NodeOption {
	return func(o *nodeOptions) { o.rules = rules }
}

func collectOptions(opts []NodeOption) nodeOptions {
	var o nodeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func applyOptions(n *Node, o nodeOptions) {
	if o.citation != "" {
		n.Citation = o.citation
	}

	rules := o.rules
	if rules == nil {
		rules = DefaultStatusRules
	}
	n.Status = o.status
	if n.Status == "" {
		n.Status = rules.Classify(n.Name)
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
