// Package graph overlays directed (or undirected) graph structure onto
// a pair of resources: a vertex resource holding arbitrary nodes and an
// edge resource holding connections between them, indexed by source,
// target, and label so traversal never falls back to a full scan.
package graph

import (
	"context"
	"fmt"

	"github.com/evalgo-org/objectdb/idgen"
	"github.com/evalgo-org/objectdb/resource"
)

const (
	partitionBySource = "bySource"
	partitionByTarget = "byTarget"
	partitionByLabel  = "byLabel"
)

// Direction selects which edges a neighbor/traverse query follows.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// Config controls one Overlay's edge semantics.
type Config struct {
	// Directed, when false, makes Connect write a mirrored reverse
	// edge so a single call connects both directions.
	Directed bool
	// WeightField names the edge data field ShortestPath reads as the
	// per-edge cost; DefaultWeight is used when it's absent.
	WeightField   string
	DefaultWeight float64
	// Denormalize lists vertex fields to snapshot onto an edge at
	// creation time, so later neighbor listings can reconstruct the
	// neighbor without a vertex read.
	Denormalize []string
}

// DefaultConfig matches an unweighted directed graph with no
// denormalization, the simplest case spec.md's A*/Dijkstra reduction
// describes (missing heuristic + unit weights == Dijkstra).
func DefaultConfig() Config {
	return Config{Directed: true, DefaultWeight: 1}
}

func resourceListPartitionOpts(partition, value string) resource.ListPartitionOpts {
	return resource.ListPartitionOpts{Partition: partition, Value: value}
}

// EdgeSpecFor returns the PartitionSpecs an edge resource must declare
// for an Overlay to index it.
func EdgeSpecFor() []resource.PartitionSpec {
	return []resource.PartitionSpec{
		{Name: partitionBySource, Field: "source"},
		{Name: partitionByTarget, Field: "target"},
		{Name: partitionByLabel, Field: "label"},
	}
}

// Overlay attaches graph semantics to a vertex resource and an edge
// resource. Both must already exist; Overlay never creates resources.
type Overlay struct {
	cfg      Config
	vertices *resource.Resource
	edges    *resource.Resource
}

// New constructs an Overlay. edges must have been constructed with
// EdgeSpecFor()'s partitions declared.
func New(cfg Config, vertices, edges *resource.Resource) *Overlay {
	return &Overlay{cfg: cfg, vertices: vertices, edges: edges}
}

// Edge is one connection between two vertices.
type Edge struct {
	ID           string
	Source       string
	Target       string
	Label        string
	Weight       float64
	Data         map[string]any
	Snapshot     map[string]any
	Reverse      bool
	OriginalEdge string
}

func edgeFromRecord(rec map[string]any) Edge {
	e := Edge{
		ID:           stringField(rec, "id"),
		Source:       stringField(rec, "source"),
		Target:       stringField(rec, "target"),
		Label:        stringField(rec, "label"),
		Reverse:      boolField(rec, "_reverse"),
		OriginalEdge: stringField(rec, "_originalEdge"),
	}
	if w, ok := rec["weight"]; ok {
		e.Weight = floatField(w)
	}
	if data, ok := rec["data"].(map[string]any); ok {
		e.Data = data
	}
	if snap, ok := rec["snapshot"].(map[string]any); ok {
		e.Snapshot = snap
	}
	return e
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return s
}

func boolField(rec map[string]any, key string) bool {
	b, _ := rec[key].(bool)
	return b
}

func floatField(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (g *Overlay) weightOf(e Edge) float64 {
	if g.cfg.WeightField == "" {
		if e.Weight != 0 {
			return e.Weight
		}
		return g.cfg.DefaultWeight
	}
	if e.Data != nil {
		if v, ok := e.Data[g.cfg.WeightField]; ok {
			return floatField(v)
		}
	}
	return g.cfg.DefaultWeight
}

// ConnectOpts controls one Connect call.
type ConnectOpts struct {
	Label  string
	Weight float64
	Data   map[string]any
}

// Connect creates an edge from -> to. For an undirected overlay it
// also writes a mirrored to -> from record flagged _reverse=true,
// _originalEdge=<id> so BySource/Neighbors see both directions without
// callers needing to query twice.
func (g *Overlay) Connect(ctx context.Context, from, to string, opts ConnectOpts) (Edge, error) {
	snapshot, err := g.denormalize(ctx, to)
	if err != nil {
		return Edge{}, err
	}

	rec, err := g.edges.Insert(ctx, map[string]any{
		"id":       idgen.New(),
		"source":   from,
		"target":   to,
		"label":    opts.Label,
		"weight":   opts.Weight,
		"data":     opts.Data,
		"snapshot": snapshot,
	})
	if err != nil {
		return Edge{}, fmt.Errorf("graph: connect %s->%s: %w", from, to, err)
	}
	edge := edgeFromRecord(rec)

	if !g.cfg.Directed {
		reverseSnapshot, err := g.denormalize(ctx, from)
		if err != nil {
			return edge, err
		}
		if _, err := g.edges.Insert(ctx, map[string]any{
			"id":            idgen.New(),
			"source":        to,
			"target":        from,
			"label":         opts.Label,
			"weight":        opts.Weight,
			"data":          opts.Data,
			"snapshot":      reverseSnapshot,
			"_reverse":      true,
			"_originalEdge": edge.ID,
		}); err != nil {
			return edge, fmt.Errorf("graph: connect mirror %s->%s: %w", to, from, err)
		}
	}
	return edge, nil
}

func (g *Overlay) denormalize(ctx context.Context, vertexID string) (map[string]any, error) {
	if len(g.cfg.Denormalize) == 0 {
		return nil, nil
	}
	vertex, err := g.vertices.GetOrNull(ctx, vertexID)
	if err != nil {
		return nil, fmt.Errorf("graph: denormalize %q: %w", vertexID, err)
	}
	if vertex == nil {
		return nil, nil
	}
	snapshot := make(map[string]any, len(g.cfg.Denormalize))
	for _, field := range g.cfg.Denormalize {
		if v, ok := vertex[field]; ok {
			snapshot[field] = v
		}
	}
	return snapshot, nil
}

// Disconnect removes edgeID, and its mirror if one exists (looked up
// by _originalEdge for undirected overlays).
func (g *Overlay) Disconnect(ctx context.Context, edgeID string) error {
	if !g.cfg.Directed {
		mirrors, err := g.edges.Query(ctx, func(data map[string]any) bool {
			return stringField(data, "_originalEdge") == edgeID
		})
		if err == nil {
			for _, m := range mirrors {
				_ = g.edges.Delete(ctx, stringField(m, "id"))
			}
		}
	}
	return g.edges.Delete(ctx, edgeID)
}
