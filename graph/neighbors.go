package graph

import "context"

// OutgoingEdges returns edges leaving id.
func (g *Overlay) OutgoingEdges(ctx context.Context, id string) ([]Edge, error) {
	return g.BySource(ctx, id)
}

// IncomingEdges returns edges arriving at id.
func (g *Overlay) IncomingEdges(ctx context.Context, id string) ([]Edge, error) {
	return g.ByTarget(ctx, id)
}

// Edges returns every edge touching id, outgoing and incoming
// combined.
func (g *Overlay) Edges(ctx context.Context, id string) ([]Edge, error) {
	out, err := g.OutgoingEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	in, err := g.IncomingEdges(ctx, id)
	if err != nil {
		return nil, err
	}
	return append(out, in...), nil
}

// Neighbor pairs a neighbor vertex id with the edge that reaches it
// and, if denormalized, the snapshot carried on that edge.
type Neighbor struct {
	VertexID string
	Edge     Edge
}

// Neighbors lists the vertices reachable by one edge from id in the
// given direction. When the overlay denormalizes vertex fields onto
// edges, Neighbor.Edge.Snapshot lets a caller skip a vertex read.
func (g *Overlay) Neighbors(ctx context.Context, id string, direction Direction) ([]Neighbor, error) {
	var edges []Edge
	switch direction {
	case DirectionIn:
		e, err := g.IncomingEdges(ctx, id)
		if err != nil {
			return nil, err
		}
		edges = e
	case DirectionBoth:
		e, err := g.Edges(ctx, id)
		if err != nil {
			return nil, err
		}
		edges = e
	default: // out
		e, err := g.OutgoingEdges(ctx, id)
		if err != nil {
			return nil, err
		}
		edges = e
	}

	out := make([]Neighbor, 0, len(edges))
	for _, e := range edges {
		neighborID := e.Target
		if e.Source != id {
			neighborID = e.Source
		}
		out = append(out, Neighbor{VertexID: neighborID, Edge: e})
	}
	return out, nil
}

// Degree reports how many edges leave (out) and arrive at (in) id.
func (g *Overlay) Degree(ctx context.Context, id string) (out, in int, err error) {
	o, err := g.OutgoingEdges(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	i, err := g.IncomingEdges(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	return len(o), len(i), nil
}
