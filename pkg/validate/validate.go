// Package validate runs read-only integrity checks over an accumulated
// legislative graph. Every check returns findings as data, never as errors:
// anomalies are exactly what the checks exist to report, so discovering one
// is a successful outcome. The validator keeps no state between calls and
// never writes, which lets it run concurrently with an in-progress
// extraction; callers must treat its output as a snapshot, not a live
// invariant.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/store"
	"golang.org/x/sync/errgroup"
)

// Check names used in findings.
const (
	CheckOrphans    = "orphans"
	CheckLevels     = "level_violations"
	CheckOrder      = "insertion_order"
	CheckDuplicates = "duplicate_subtrees"
	CheckChildless  = "childless_structures"
)

// Finding is one detected anomaly. Findings carry no severity: thresholds
// and alarm policy belong to the caller, which knows whether a run is still
// in flight.
type Finding struct {
	Check  string `json:"check"`
	NodeID law.ID `json:"node_id"`
	Detail string `json:"detail"`
}

// ContentAudit reports how much of the content classification is actually
// populated. A perfect hierarchy with zero populated text is the signature
// of a parsing regression in the extraction layer, not a graph problem.
type ContentAudit struct {
	ContentNodes     int     `json:"content_nodes"`
	WithText         int     `json:"with_text"`
	WithCitation     int     `json:"with_citation"`
	TextFraction     float64 `json:"text_fraction"`
	CitationFraction float64 `json:"citation_fraction"`
}

// Report is the aggregate of one validation pass over a corpus. TakenAt
// records the snapshot time so consumers can discount findings produced
// mid-run.
type Report struct {
	Corpus   law.ID       `json:"corpus"`
	TakenAt  time.Time    `json:"taken_at"`
	Nodes    int          `json:"nodes"`
	Findings []Finding    `json:"findings"`
	Audit    ContentAudit `json:"content_audit"`
}

// LevelOrder is the declared level ranking of a jurisdiction, outermost
// first. An edge whose levels skip more than one rank, or run in the wrong
// direction, is evidence of a mis-wired extraction routine.
type LevelOrder []string

// DefaultLevelOrder fits the title/chapter/article/section corpora that
// make up most of the collection.
var DefaultLevelOrder = LevelOrder{
	"jurisdiction", "corpus", "title", "chapter", "article", "section",
}

func (o LevelOrder) rank(level string) (int, bool) {
	level = strings.ToLower(level)
	for i, l := range o {
		if l == level {
			return i, true
		}
	}
	return 0, false
}

// Validator runs checks against one NodeStorage.
type Validator struct {
	store  store.NodeStorage
	levels LevelOrder
}

type Option func(*Validator)

// WithLevelOrder swaps in a jurisdiction-specific level ranking.
func WithLevelOrder(order LevelOrder) Option {
	return func(v *Validator) { v.levels = order }
}

func New(s store.NodeStorage, opts ...Option) *Validator {
	v := &Validator{
		store:  s,
		levels: DefaultLevelOrder,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// snapshot loads one corpus into memory. Each check works over its own
// snapshot so a concurrently mutating store cannot corrupt a single pass.
func (v *Validator) snapshot(ctx context.Context, corpus law.ID) (map[law.ID]*law.Node, error) {
	nodes := make(map[law.ID]*law.Node)
	err := v.store.ScanPrefix(ctx, string(corpus), func(n *law.Node) error {
		nodes[n.ID] = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// Orphans finds non-root nodes whose parent cannot be resolved, and
// non-root nodes with no parent at all. A broken extraction shows up most
// visibly as a subtree whose root insert failed while children still landed.
func (v *Validator) Orphans(ctx context.Context, corpus law.ID) ([]Finding, error) {
	nodes, err := v.snapshot(ctx, corpus)
	if err != nil {
		return nil, err
	}
	return v.orphansIn(ctx, nodes)
}

func (v *Validator) orphansIn(ctx context.Context, nodes map[law.ID]*law.Node) ([]Finding, error) {
	findings := make([]Finding, 0)
	for _, n := range sortedNodes(nodes) {
		if n.IsRoot() {
			continue
		}
		if n.Parent == "" {
			findings = append(findings, Finding{
				Check:  CheckOrphans,
				NodeID: n.ID,
				Detail: "non-root node has no parent identity",
			})
			continue
		}
		if _, ok := nodes[n.Parent]; ok {
			continue
		}
		// The corpus snapshot does not cover the jurisdiction root; fall
		// back to a point lookup before declaring an orphan. Only a
		// confirmed miss is an orphan; a failing store is not evidence.
		_, err := v.store.Get(ctx, n.Parent)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("resolve parent %s: %w", n.Parent, err)
		}
		findings = append(findings, Finding{
			Check:  CheckOrphans,
			NodeID: n.ID,
			Detail: fmt.Sprintf("parent %s does not resolve", n.Parent),
		})
	}
	return findings, nil
}

// LevelViolations flags parent-child edges that skip ranks or invert the
// declared level ordering. Levels absent from the ordering are not judged.
func (v *Validator) LevelViolations(ctx context.Context, corpus law.ID) ([]Finding, error) {
	nodes, err := v.snapshot(ctx, corpus)
	if err != nil {
		return nil, err
	}
	return v.levelViolationsIn(nodes), nil
}

func (v *Validator) levelViolationsIn(nodes map[law.ID]*law.Node) []Finding {
	findings := make([]Finding, 0)
	for _, n := range sortedNodes(nodes) {
		if n.Parent == "" {
			continue
		}
		parent, ok := nodes[n.Parent]
		if !ok {
			continue // reported by the orphan check instead
		}
		childRank, okChild := v.levels.rank(n.LevelTag)
		parentRank, okParent := v.levels.rank(parent.LevelTag)
		if !okChild || !okParent {
			continue
		}
		if childRank <= parentRank {
			findings = append(findings, Finding{
				Check:  CheckLevels,
				NodeID: n.ID,
				Detail: fmt.Sprintf("level %s under %s inverts the declared ordering", n.LevelTag, parent.LevelTag),
			})
			continue
		}
		if childRank-parentRank > 1 {
			findings = append(findings, Finding{
				Check:  CheckLevels,
				NodeID: n.ID,
				Detail: fmt.Sprintf("level %s under %s skips %d ranks", n.LevelTag, parent.LevelTag, childRank-parentRank-1),
			})
		}
	}
	return findings
}

// OrderAnomalies flags children created before their parents. Identities
// are derived from parents, so a healthy depth-first extraction always
// inserts the parent first; an inverted timestamp is the tell of
// out-of-order batched inserts corrupting the tree.
func (v *Validator) OrderAnomalies(ctx context.Context, corpus law.ID) ([]Finding, error) {
	nodes, err := v.snapshot(ctx, corpus)
	if err != nil {
		return nil, err
	}
	return orderAnomaliesIn(nodes), nil
}

func orderAnomaliesIn(nodes map[law.ID]*law.Node) []Finding {
	findings := make([]Finding, 0)
	for _, n := range sortedNodes(nodes) {
		parent, ok := nodes[n.Parent]
		if !ok {
			continue
		}
		if n.CreatedAt.Before(parent.CreatedAt) {
			findings = append(findings, Finding{
				Check:  CheckOrder,
				NodeID: n.ID,
				Detail: fmt.Sprintf("created %s before parent %s",
					n.CreatedAt.Format(time.RFC3339Nano), parent.CreatedAt.Format(time.RFC3339Nano)),
			})
		}
	}
	return findings
}

// Audit computes content population for the corpus, plus a finding for
// every structure node with no children. Childless containers are not a
// hard constraint, just the usual shape of a broken extraction.
func (v *Validator) Audit(ctx context.Context, corpus law.ID) (ContentAudit, []Finding, error) {
	nodes, err := v.snapshot(ctx, corpus)
	if err != nil {
		return ContentAudit{}, nil, err
	}
	audit, findings := auditIn(nodes)
	return audit, findings, nil
}

func auditIn(nodes map[law.ID]*law.Node) (ContentAudit, []Finding) {
	var audit ContentAudit
	findings := make([]Finding, 0)

	hasChild := make(map[law.ID]bool, len(nodes))
	for _, n := range nodes {
		if n.Parent != "" {
			hasChild[n.Parent] = true
		}
	}

	for _, n := range sortedNodes(nodes) {
		switch n.Classification {
		case law.ClassificationContent:
			audit.ContentNodes++
			if n.HasText() {
				audit.WithText++
			}
			if n.Citation != "" {
				audit.WithCitation++
			}
		case law.ClassificationStructure:
			if !hasChild[n.ID] && !n.IsRoot() {
				findings = append(findings, Finding{
					Check:  CheckChildless,
					NodeID: n.ID,
					Detail: "structure node has no children",
				})
			}
		}
	}
	if audit.ContentNodes > 0 {
		audit.TextFraction = float64(audit.WithText) / float64(audit.ContentNodes)
		audit.CitationFraction = float64(audit.WithCitation) / float64(audit.ContentNodes)
	}
	return audit, findings
}

// DuplicateSubtrees groups nodes by identity with version suffixes stripped
// and flags groups whose members carry near-identical text bodies: the
// signature of an accidental repeat extraction run, as opposed to a genuine
// republication which differs in heading or text.
func (v *Validator) DuplicateSubtrees(ctx context.Context, corpus law.ID) ([]Finding, error) {
	nodes, err := v.snapshot(ctx, corpus)
	if err != nil {
		return nil, err
	}
	return duplicateSubtreesIn(nodes), nil
}

func duplicateSubtreesIn(nodes map[law.ID]*law.Node) []Finding {
	groups := make(map[law.ID][]*law.Node)
	for _, n := range nodes {
		base := n.ID.Base()
		groups[base] = append(groups[base], n)
	}

	bases := make([]law.ID, 0, len(groups))
	for base, members := range groups {
		if len(members) > 1 {
			bases = append(bases, base)
		}
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })

	findings := make([]Finding, 0)
	for _, base := range bases {
		members := groups[base]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		if !nearIdenticalText(members) {
			continue
		}
		ids := make([]string, len(members))
		for i, m := range members {
			ids[i] = string(m.ID)
		}
		findings = append(findings, Finding{
			Check:  CheckDuplicates,
			NodeID: base,
			Detail: fmt.Sprintf("%d copies with matching text: %s", len(members), strings.Join(ids, ", ")),
		})
	}
	return findings
}

// nearIdenticalText requires every member to carry the same non-empty body.
// Bodiless version groups are not judged: two structure nodes without text
// are a legitimate republication, not a repeat run.
func nearIdenticalText(members []*law.Node) bool {
	first := normalizeText(members[0].Text.Plain())
	if first == "" {
		return false
	}
	for _, m := range members[1:] {
		if normalizeText(m.Text.Plain()) != first {
			return false
		}
	}
	return true
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Run executes every check concurrently over the same store and merges the
// results into one report. Checks are independent, so the errgroup fan-out
// changes throughput, not results.
func (v *Validator) Run(ctx context.Context, corpus law.ID) (*Report, error) {
	nodes, err := v.snapshot(ctx, corpus)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Corpus:  corpus,
		TakenAt: time.Now().UTC(),
		Nodes:   len(nodes),
	}

	var mu sync.Mutex
	appendFindings := func(fs []Finding) {
		mu.Lock()
		report.Findings = append(report.Findings, fs...)
		mu.Unlock()
	}

	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		fs, err := v.orphansIn(ectx, nodes)
		if err != nil {
			return err
		}
		appendFindings(fs)
		return nil
	})
	eg.Go(func() error {
		appendFindings(v.levelViolationsIn(nodes))
		return nil
	})
	eg.Go(func() error {
		appendFindings(orderAnomaliesIn(nodes))
		return nil
	})
	eg.Go(func() error {
		audit, fs := auditIn(nodes)
		mu.Lock()
		report.Audit = audit
		mu.Unlock()
		appendFindings(fs)
		return nil
	})
	eg.Go(func() error {
		appendFindings(duplicateSubtreesIn(nodes))
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Findings, func(i, j int) bool {
		if report.Findings[i].Check != report.Findings[j].Check {
			return report.Findings[i].Check < report.Findings[j].Check
		}
		return report.Findings[i].NodeID < report.Findings[j].NodeID
	})
	return report, nil
}

func sortedNodes(nodes map[law.ID]*law.Node) []*law.Node {
	out := make([]*law.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
