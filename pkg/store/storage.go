package store

import (
	"context"
	"fmt"

	"github.com/open-statutes/trellis/pkg/law"
)

// ConflictPolicy decides the outcome when an insert collides with an
// existing identity.
type ConflictPolicy string

const (
	// PolicyIgnore discards the new node and returns the existing row,
	// making retried extraction steps idempotent.
	PolicyIgnore ConflictPolicy = "ignore"
	// PolicyVersion retains both copies by suffixing the new identity with
	// -v_2, -v_3, ... Some sources genuinely republish a statute number
	// under a different heading and both must survive for audit.
	PolicyVersion ConflictPolicy = "version"
	// PolicyError surfaces the collision unresolved.
	PolicyError ConflictPolicy = "error"
)

// ParsePolicy validates a policy string arriving over the wire.
func ParsePolicy(raw string) (ConflictPolicy, error) {
	switch ConflictPolicy(raw) {
	case PolicyIgnore, PolicyVersion, PolicyError:
		return ConflictPolicy(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, raw)
}

// NodeStorage is the persistence boundary of the graph. It is the only
// component that performs storage I/O; everything above it works with
// law.Node values.
//
// Insert is atomic per node: it either persists the (possibly re-identified)
// node or leaves the store untouched. InsertMany is defined to behave
// exactly like Insert called once per node in submitted order - batching is
// a throughput optimization, never a semantic change, because submission
// order is the signal the insertion-order integrity check reads.
type NodeStorage interface {
	// EnsureCorpus prepares storage for one jurisdiction/corpus pair. It is
	// idempotent and must be called before the first insert of a corpus.
	EnsureCorpus(ctx context.Context, corpus law.ID) error

	Insert(ctx context.Context, node *law.Node, policy ConflictPolicy) (*law.Node, error)
	InsertMany(ctx context.Context, nodes []*law.Node, policy ConflictPolicy) ([]*law.Node, error)

	// Update rewrites the mutable subset of a node (status, text, addendum,
	// references) discovered on a later pass of the same extraction run.
	Update(ctx context.Context, node *law.Node) error

	// Get returns ErrNotFound on a miss.
	Get(ctx context.Context, id law.ID) (*law.Node, error)

	// ChildrenOf derives the child set by querying on parent identity,
	// ordered lexicographically by identity. For numeric segment values
	// that approximates document order but is not guaranteed to match true
	// legislative order.
	ChildrenOf(ctx context.Context, id law.ID) ([]*law.Node, error)

	// ScanPrefix streams every node under a trailing-wildcard pattern in
	// unspecified order. Returning an error from fn stops the scan.
	ScanPrefix(ctx context.Context, pattern string, fn func(*law.Node) error) error

	// Stats reports row counts by classification and status for one corpus.
	Stats(ctx context.Context, corpus law.ID) (Stats, error)

	// Clean drops every row of one corpus. Administrative reset only; it is
	// not part of the node lifecycle.
	Clean(ctx context.Context, corpus law.ID) error
}

// EmbeddingStorage is the optional write surface for the external embedding
// layer. Only vector-capable backends implement it.
type EmbeddingStorage interface {
	SaveEmbedding(ctx context.Context, id law.ID, embedding []float32) error
	SimilarContent(ctx context.Context, corpus law.ID, embedding []float32, limit int) ([]*law.Node, error)
}

// Stats summarizes one corpus table.
type Stats struct {
	Total            int64            `json:"total"`
	ByClassification map[string]int64 `json:"by_classification"`
	ByStatus         map[string]int64 `json:"by_status"`
}

// CollectPrefix gathers a ScanPrefix result into a slice for callers that
// want the whole subtree at once.
func CollectPrefix(ctx context.Context, s NodeStorage, pattern string) ([]*law.Node, error) {
	var nodes []*law.Node
	err := s.ScanPrefix(ctx, pattern, func(n *law.Node) error {
		nodes = append(nodes, n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}
