package graph

import (
	"context"
	"fmt"
)

// WouldCreateCycle reports whether connecting from -> to would create
// a cycle, by checking whether to can already reach from via outgoing
// edges.
func (g *Overlay) WouldCreateCycle(ctx context.Context, from, to string) (bool, error) {
	if from == to {
		return true, nil
	}
	return g.PathExists(ctx, to, from, PathOpts{Direction: DirectionOut})
}

// ValidateAcyclic walks outgoing edges from start with a depth-first
// search tracking a recursion stack, returning an error naming the
// back-edge the moment one is found.
func (g *Overlay) ValidateAcyclic(ctx context.Context, start string) error {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	return g.walkAcyclic(ctx, start, visited, onStack)
}

func (g *Overlay) walkAcyclic(ctx context.Context, node string, visited, onStack map[string]bool) error {
	visited[node] = true
	onStack[node] = true

	neighbors, err := g.OutgoingEdges(ctx, node)
	if err != nil {
		return err
	}
	for _, e := range neighbors {
		if onStack[e.Target] {
			return fmt.Errorf("graph: cycle detected: %s -> %s", node, e.Target)
		}
		if !visited[e.Target] {
			if err := g.walkAcyclic(ctx, e.Target, visited, onStack); err != nil {
				return err
			}
		}
	}

	onStack[node] = false
	return nil
}
