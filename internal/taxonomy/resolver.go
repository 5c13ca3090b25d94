// Package taxonomy classifies an entity by climbing its parent chain in the
// task manager: the ancestor directly under the root names the pillar,
// category ancestors name the subcategory and project ancestors the project.
package taxonomy

import (
	"context"
	"fmt"
	"log/slog"

	"tasksync/internal/cache"
	"tasksync/internal/domain"
)

// DefaultMaxDepth bounds a climb so a parent cycle cannot loop forever.
const DefaultMaxDepth = 20

// AncestorSource fetches one taxonomy node by id.
type AncestorSource interface {
	Node(ctx context.Context, id string) (domain.Lookup[domain.TaxonomyNode], error)
}

// State is the position of a climb.
type State int

const (
	AtRoot State = iota
	Resolving
	Classified
)

func (s State) String() string {
	switch s {
	case AtRoot:
		return "at_root"
	case Resolving:
		return "resolving"
	case Classified:
		return "classified"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Resolver climbs parent chains, memoizing every node it fetches. A Resolver
// belongs to one sync run.
type Resolver struct {
	src      AncestorSource
	nodes    *cache.Map[string, domain.TaxonomyNode]
	maxDepth int
	lookups  int
	log      *slog.Logger
}

type Option func(*Resolver)

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(n int) Option { return func(r *Resolver) { r.maxDepth = n } }

// WithCache shares a node cache, e.g. one pre-seeded from a bulk fetch.
func WithCache(c *cache.Map[string, domain.TaxonomyNode]) Option {
	return func(r *Resolver) { r.nodes = c }
}

func WithLogger(l *slog.Logger) Option { return func(r *Resolver) { r.log = l } }

func New(src AncestorSource, opts ...Option) *Resolver {
	r := &Resolver{
		src:      src,
		nodes:    cache.New[string, domain.TaxonomyNode](),
		maxDepth: DefaultMaxDepth,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Lookups returns how many nodes were fetched from the source.
func (r *Resolver) Lookups() int { return r.lookups }

// Resolve classifies an entity whose immediate parent is parentID. An
// unassigned parent short-circuits to the Inbox project.
func (r *Resolver) Resolve(ctx context.Context, parentID string) (domain.Classification, error) {
	var out domain.Classification
	if parentID == "" || parentID == domain.UnassignedID {
		out.Project = domain.InboxProject
		return out, nil
	}

	state := Resolving
	id := parentID
	for depth := 0; state != AtRoot; depth++ {
		if id == domain.RootID {
			// The entity hangs directly off the root.
			state = AtRoot
			break
		}
		if depth >= r.maxDepth {
			return out, &domain.ResolutionError{ParentID: parentID, NodeID: id, Depth: depth, Reason: "depth bound exceeded"}
		}
		node, err := r.node(ctx, id)
		if err != nil {
			return out, err
		}
		found, ok := node.Get()
		if !ok {
			return out, &domain.ResolutionError{ParentID: parentID, NodeID: id, Depth: depth, Reason: "ancestor not found"}
		}

		if found.ParentID == domain.RootID {
			out.Pillar = found.Title
			state = AtRoot
			continue
		}
		switch found.Type {
		case domain.NodeCategory:
			out.Subcategory = found.Title
		case domain.NodeProject:
			out.Project = found.Title
		}
		state = Classified
		r.log.Debug("taxonomy step",
			slog.String("node", found.ID),
			slog.String("type", string(found.Type)),
			slog.String("state", state.String()),
		)
		if found.ParentID == "" {
			return out, &domain.ResolutionError{ParentID: parentID, NodeID: id, Depth: depth, Reason: "chain ends without reaching root"}
		}
		id = found.ParentID
	}
	return out, nil
}

func (r *Resolver) node(ctx context.Context, id string) (domain.Lookup[domain.TaxonomyNode], error) {
	if n, ok := r.nodes.Get(id); ok {
		return domain.Found(n), nil
	}
	r.lookups++
	res, err := r.src.Node(ctx, id)
	if err != nil {
		return res, fmt.Errorf("taxonomy node %s: %w", id, err)
	}
	if n, ok := res.Get(); ok {
		r.nodes.Put(id, n)
	}
	return res, nil
}
