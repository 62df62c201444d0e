package graph

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
)

// PathNotFoundError is returned by ShortestPath when the open set is
// exhausted before reaching the target.
type PathNotFoundError struct {
	From, To string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("graph: no path from %q to %q", e.From, e.To)
}

// MaxIterationsExceededError is returned when ShortestPath runs more
// than maxDepth*1000 iterations without converging, guarding against
// runaway search on a pathological graph.
type MaxIterationsExceededError struct {
	From, To   string
	Iterations int
}

func (e *MaxIterationsExceededError) Error() string {
	return fmt.Sprintf("graph: shortest path %q -> %q exceeded %d iterations", e.From, e.To, e.Iterations)
}

// PathOpts controls ShortestPath's search.
type PathOpts struct {
	MaxDepth     int
	Heuristic    func(node string) float64
	Direction    Direction
	ReturnPath   bool
	IncludeStats bool
}

// PathResult is ShortestPath's output, shaped by ReturnPath/IncludeStats.
type PathResult struct {
	Distance float64
	Path     []string

	Iterations int
	Visited    int
}

type pqItem struct {
	node string
	g, f float64
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int           { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)        { *pq = append(*pq, x.(*pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}

// ShortestPath runs A* from `from` to `to`. g is accumulated edge
// weight (Overlay.weightOf); h is opts.Heuristic (0 if absent, which
// reduces the search to Dijkstra). Termination is: reaching `to`, the
// open set emptying (PathNotFoundError), or exceeding
// maxDepth*1000 iterations (MaxIterationsExceededError). A node is not
// expanded once its depth from `from` reaches maxDepth.
func (g *Overlay) ShortestPath(ctx context.Context, from, to string, opts PathOpts) (PathResult, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1000
	}
	maxIterations := maxDepth * 1000
	heuristic := opts.Heuristic
	if heuristic == nil {
		heuristic = func(string) float64 { return 0 }
	}
	direction := opts.Direction
	if direction == "" {
		direction = DirectionOut
	}

	open := &priorityQueue{}
	heap.Init(open)
	heap.Push(open, &pqItem{node: from, g: 0, f: heuristic(from)})

	gScore := map[string]float64{from: 0}
	depthOf := map[string]int{from: 0}
	cameFrom := map[string]string{}
	visited := map[string]bool{}

	iterations := 0
	visitedCount := 0

	for open.Len() > 0 {
		iterations++
		if iterations > maxIterations {
			return PathResult{}, &MaxIterationsExceededError{From: from, To: to, Iterations: iterations}
		}

		current := heap.Pop(open).(*pqItem)
		if visited[current.node] {
			continue
		}
		visited[current.node] = true
		visitedCount++

		if current.node == to {
			return g.buildResult(cameFrom, from, to, gScore[to], opts, iterations, visitedCount), nil
		}

		depth := depthOf[current.node]
		if depth >= maxDepth {
			continue
		}

		neighbors, err := g.Neighbors(ctx, current.node, direction)
		if err != nil {
			return PathResult{}, err
		}
		for _, nb := range neighbors {
			if visited[nb.VertexID] {
				continue
			}
			tentativeG := gScore[current.node] + g.weightOf(nb.Edge)
			if existing, ok := gScore[nb.VertexID]; ok && tentativeG >= existing {
				continue
			}
			gScore[nb.VertexID] = tentativeG
			cameFrom[nb.VertexID] = current.node
			depthOf[nb.VertexID] = depth + 1
			heap.Push(open, &pqItem{node: nb.VertexID, g: tentativeG, f: tentativeG + heuristic(nb.VertexID)})
		}
	}

	return PathResult{}, &PathNotFoundError{From: from, To: to}
}

func (g *Overlay) buildResult(cameFrom map[string]string, from, to string, distance float64, opts PathOpts, iterations, visited int) PathResult {
	result := PathResult{Distance: distance}
	if opts.ReturnPath {
		result.Path = reconstructPath(cameFrom, from, to)
	}
	if opts.IncludeStats {
		result.Iterations = iterations
		result.Visited = visited
	}
	return result
}

func reconstructPath(cameFrom map[string]string, from, to string) []string {
	path := []string{to}
	node := to
	for node != from {
		prev, ok := cameFrom[node]
		if !ok {
			break
		}
		path = append(path, prev)
		node = prev
	}
	// reverse in place
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// PathExists reports whether any path connects from to to within
// opts.MaxDepth, without computing distance.
func (g *Overlay) PathExists(ctx context.Context, from, to string, opts PathOpts) (bool, error) {
	opts.ReturnPath = false
	opts.IncludeStats = false
	_, err := g.ShortestPath(ctx, from, to, opts)
	if err != nil {
		var notFound *PathNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
