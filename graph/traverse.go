package graph

import "context"

// TraverseMode selects BFS or DFS expansion order.
type TraverseMode string

const (
	ModeBFS TraverseMode = "bfs"
	ModeDFS TraverseMode = "dfs"
)

// TraverseOpts controls Traverse.
type TraverseOpts struct {
	Mode      TraverseMode
	MaxDepth  int
	Direction Direction
	// Filter gates whether a node is included in the result at all;
	// a filtered-out node is also not expanded.
	Filter func(node string) bool
	// Visitor may return false to prune a node's descendants. The
	// node itself is still counted in the result before its
	// descendants are pruned.
	Visitor func(node string) bool
}

type frontierEntry struct {
	node  string
	depth int
}

// Traverse walks the graph from start in BFS (queue, front-extract) or
// DFS (stack, back-extract) order, returning every node visited.
func (g *Overlay) Traverse(ctx context.Context, start string, opts TraverseOpts) ([]string, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1000
	}
	direction := opts.Direction
	if direction == "" {
		direction = DirectionOut
	}

	frontier := []frontierEntry{{node: start, depth: 0}}
	visited := map[string]bool{}
	var result []string

	for len(frontier) > 0 {
		var entry frontierEntry
		if opts.Mode == ModeDFS {
			entry = frontier[len(frontier)-1]
			frontier = frontier[:len(frontier)-1]
		} else {
			entry = frontier[0]
			frontier = frontier[1:]
		}

		if visited[entry.node] {
			continue
		}
		visited[entry.node] = true

		if opts.Filter != nil && !opts.Filter(entry.node) {
			continue
		}
		result = append(result, entry.node)

		if opts.Visitor != nil && !opts.Visitor(entry.node) {
			continue
		}
		if entry.depth >= maxDepth {
			continue
		}

		neighbors, err := g.Neighbors(ctx, entry.node, direction)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if visited[nb.VertexID] {
				continue
			}
			frontier = append(frontier, frontierEntry{node: nb.VertexID, depth: entry.depth + 1})
		}
	}

	return result, nil
}
