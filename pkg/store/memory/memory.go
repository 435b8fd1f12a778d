// Package memory provides a NodeStorage backed by process memory. It backs
// the validator and server tests and small local extraction runs; the
// semantics mirror the Postgres backend exactly, minus durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/store"
)

type Storage struct {
	mu    sync.RWMutex
	nodes map[law.ID]*law.Node
	now   func() time.Time
}

// Option configures the storage.
type Option func(*Storage)

// WithClock replaces the timestamp source. Tests use it to script
// creation-time orderings.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) { s.now = now }
}

func New(opts ...Option) *Storage {
	s := &Storage{
		nodes: make(map[law.ID]*law.Node),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

var _ store.NodeStorage = (*Storage)(nil)

func (s *Storage) EnsureCorpus(ctx context.Context, corpus law.ID) error {
	return nil
}

func (s *Storage) Insert(ctx context.Context, node *law.Node, policy store.ConflictPolicy) (*law.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(ctx, node, policy)
}

func (s *Storage) insertLocked(ctx context.Context, node *law.Node, policy store.ConflictPolicy) (*law.Node, error) {
	if _, taken := s.nodes[node.ID]; !taken {
		return s.persistLocked(node), nil
	}

	res, err := store.Resolve(ctx, node, policy, func(_ context.Context, id law.ID) (bool, error) {
		_, ok := s.nodes[id]
		return ok, nil
	})
	if err != nil {
		return nil, err
	}
	if res.Node == nil {
		return copyNode(s.nodes[res.Existing]), nil
	}
	return s.persistLocked(res.Node), nil
}

func (s *Storage) persistLocked(node *law.Node) *law.Node {
	stored := copyNode(node)
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.nodes[stored.ID] = stored
	return copyNode(stored)
}

func (s *Storage) InsertMany(ctx context.Context, nodes []*law.Node, policy store.ConflictPolicy) ([]*law.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*law.Node, 0, len(nodes))
	for _, n := range nodes {
		persisted, err := s.insertLocked(ctx, n, policy)
		if err != nil {
			return out, err
		}
		out = append(out, persisted)
	}
	return out, nil
}

func (s *Storage) Update(ctx context.Context, node *law.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[node.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Status = node.Status
	existing.Text = node.Text
	existing.Addendum = node.Addendum
	existing.References = node.References
	existing.UpdatedAt = s.now()
	return nil
}

func (s *Storage) Get(ctx context.Context, id law.ID) (*law.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyNode(n), nil
}

func (s *Storage) ChildrenOf(ctx context.Context, id law.ID) ([]*law.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*law.Node
	for _, n := range s.nodes {
		if n.Parent == id {
			children = append(children, copyNode(n))
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children, nil
}

func (s *Storage) ScanPrefix(ctx context.Context, pattern string, fn func(*law.Node) error) error {
	s.mu.RLock()
	snapshot := make([]*law.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		if n.ID.MatchesPrefix(pattern) {
			snapshot = append(snapshot, copyNode(n))
		}
	}
	s.mu.RUnlock()

	for _, n := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) Stats(ctx context.Context, corpus law.ID) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := store.Stats{
		ByClassification: make(map[string]int64),
		ByStatus:         make(map[string]int64),
	}
	for _, n := range s.nodes {
		if !n.ID.MatchesPrefix(string(corpus)) {
			continue
		}
		stats.Total++
		stats.ByClassification[string(n.Classification)]++
		if n.Status != "" {
			stats.ByStatus[n.Status]++
		}
	}
	return stats, nil
}

func (s *Storage) Clean(ctx context.Context, corpus law.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.nodes {
		if id.MatchesPrefix(string(corpus)) {
			delete(s.nodes, id)
		}
	}
	return nil
}

func copyNode(n *law.Node) *law.Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Text != nil {
		text := law.NodeText{Paragraphs: append([]law.Paragraph(nil), n.Text.Paragraphs...)}
		out.Text = &text
	}
	if n.Addendum != nil {
		addendum := *n.Addendum
		out.Addendum = &addendum
	}
	if n.References != nil {
		out.References = append([]law.Reference(nil), n.References...)
	}
	return &out
}
