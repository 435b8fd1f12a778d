package validate

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-statutes/trellis/pkg/law"
	"github.com/open-statutes/trellis/pkg/store"
)

// RootPath is the result of reconstructing a node's ancestor chain. When
// Unreachable is true the chain holds every node visited before the walk
// broke and Reason names the break.
type RootPath struct {
	Chain       []*law.Node `json:"chain"`
	Unreachable bool        `json:"unreachable"`
	Reason      string      `json:"reason,omitempty"`
}

// RootPath walks parent links from id until a root kind is reached. The
// walk is bounded by the identity's segment count plus slack for version
// suffixes, so it terminates even when corrupted parent pointers form a
// cycle; a revisited identity or a missing link yields an explicit
// Unreachable result instead of an error. Chain is ordered root first.
func (v *Validator) RootPath(ctx context.Context, id law.ID) (RootPath, error) {
	maxHops := id.Depth() + 1

	var chain []*law.Node
	seen := make(map[law.ID]struct{}, maxHops)
	current := id

	for hop := 0; hop <= maxHops; hop++ {
		if _, visited := seen[current]; visited {
			return unreachable(chain, fmt.Sprintf("cycle at %s", current)), nil
		}
		seen[current] = struct{}{}

		n, err := v.store.Get(ctx, current)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return unreachable(chain, fmt.Sprintf("missing link %s", current)), nil
			}
			return RootPath{}, err
		}
		chain = append(chain, n)

		if n.IsRoot() {
			reverse(chain)
			return RootPath{Chain: chain}, nil
		}
		if n.Parent == "" {
			return unreachable(chain, fmt.Sprintf("non-root node %s has no parent", current)), nil
		}
		current = n.Parent
	}
	return unreachable(chain, fmt.Sprintf("walk exceeded %d hops", maxHops)), nil
}

func unreachable(chain []*law.Node, reason string) RootPath {
	reverse(chain)
	return RootPath{Chain: chain, Unreachable: true, Reason: reason}
}

func reverse(nodes []*law.Node) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}
