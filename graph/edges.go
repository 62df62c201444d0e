package graph

import (
	"context"
	"fmt"
)

// BySource returns every edge whose source is id.
func (g *Overlay) BySource(ctx context.Context, id string) ([]Edge, error) {
	return g.listPartition(ctx, partitionBySource, id)
}

// ByTarget returns every edge whose target is id.
func (g *Overlay) ByTarget(ctx context.Context, id string) ([]Edge, error) {
	return g.listPartition(ctx, partitionByTarget, id)
}

// Labels returns every edge carrying the given label.
func (g *Overlay) Labels(ctx context.Context, label string) ([]Edge, error) {
	return g.listPartition(ctx, partitionByLabel, label)
}

func (g *Overlay) listPartition(ctx context.Context, partition, value string) ([]Edge, error) {
	records, err := g.edges.ListPartition(ctx, resourceListPartitionOpts(partition, value))
	if err != nil {
		return nil, fmt.Errorf("graph: list %s=%s: %w", partition, value, err)
	}
	out := make([]Edge, 0, len(records))
	for _, rec := range records {
		out = append(out, edgeFromRecord(rec))
	}
	return out, nil
}

// Between returns every edge from s to t, optionally narrowed to one
// label.
func (g *Overlay) Between(ctx context.Context, s, t string, label string) ([]Edge, error) {
	fromS, err := g.BySource(ctx, s)
	if err != nil {
		return nil, err
	}
	var out []Edge
	for _, e := range fromS {
		if e.Target != t {
			continue
		}
		if label != "" && e.Label != label {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// IsConnected reports whether any edge runs from s to t.
func (g *Overlay) IsConnected(ctx context.Context, s, t string) (bool, error) {
	edges, err := g.Between(ctx, s, t, "")
	if err != nil {
		return false, err
	}
	return len(edges) > 0, nil
}
