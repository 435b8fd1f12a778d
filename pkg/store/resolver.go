package store

import (
	"context"
	"fmt"

	"github.com/open-statutes/trellis/pkg/law"
)

// MaxVersionProbes bounds the -v_N suffix search. Probing starts at 2, so
// the cap admits versions 2 through 9 before giving up.
const MaxVersionProbes = 9

// ExistsFunc reports whether an identity is already taken. Backends supply
// their own lookup so the resolver stays free of I/O concerns.
type ExistsFunc func(ctx context.Context, id law.ID) (bool, error)

// Resolution is the resolver's verdict on a colliding insert.
type Resolution struct {
	// Node is the node to persist, possibly carrying a re-versioned
	// identity. Nil when no insert should happen.
	Node *law.Node
	// Existing is set under PolicyIgnore: the identity of the row that
	// already holds this logical entity.
	Existing law.ID
}

// Resolve decides what happens when node's identity collides with an
// existing row.
//
// Under PolicyVersion any version suffix the node already carries is
// stripped before probing, so a re-inserted -v_2 node cannot stack into
// -v_2-v_2. Probing walks -v_2, -v_3, ... up to the cap and fails with
// ErrVersionExhausted beyond it.
func Resolve(ctx context.Context, node *law.Node, policy ConflictPolicy, exists ExistsFunc) (Resolution, error) {
	switch policy {
	case PolicyIgnore:
		return Resolution{Existing: node.ID}, nil

	case PolicyError:
		return Resolution{}, fmt.Errorf("%w: %s", ErrDuplicate, node.ID)

	case PolicyVersion:
		base := node.ID.Base()
		for v := 2; v <= MaxVersionProbes; v++ {
			candidate := base.WithVersion(v)
			taken, err := exists(ctx, candidate)
			if err != nil {
				return Resolution{}, err
			}
			if taken {
				continue
			}
			versioned := *node
			versioned.ID = candidate
			return Resolution{Node: &versioned}, nil
		}
		return Resolution{}, fmt.Errorf("%w: %s after %d probes", ErrVersionExhausted, base, MaxVersionProbes-1)

	default:
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
	}
}
