package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo-org/objectdb/resource"
	"github.com/evalgo-org/objectdb/store"
)

func newOverlay(t *testing.T, cfg Config) (*Overlay, *resource.Resource) {
	t.Helper()
	backend := store.NewMemoryStore()
	vertices := resource.New("nodes", backend, resource.Options{Behavior: resource.BodyOnly})
	edges := resource.New("edges", backend, resource.Options{
		Behavior:   resource.BodyOnly,
		Partitions: EdgeSpecFor(),
	})
	return New(cfg, vertices, edges), vertices
}

func TestConnectWritesSingleDirectedEdge(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	_, err := g.Connect(ctx, "a", "b", ConnectOpts{Label: "likes"})
	require.NoError(t, err)

	out, err := g.BySource(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, out, 1)

	in, err := g.ByTarget(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestConnectUndirectedWritesMirror(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Directed = false
	g, _ := newOverlay(t, cfg)

	_, err := g.Connect(ctx, "a", "b", ConnectOpts{Label: "friend"})
	require.NoError(t, err)

	fromA, err := g.BySource(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, fromA, 1)

	fromB, err := g.BySource(ctx, "b")
	require.NoError(t, err)
	require.Len(t, fromB, 1)
	assert.True(t, fromB[0].Reverse)
	assert.Equal(t, "a", fromB[0].Target)
}

func TestDisconnectRemovesMirrorToo(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Directed = false
	g, _ := newOverlay(t, cfg)

	edge, err := g.Connect(ctx, "a", "b", ConnectOpts{})
	require.NoError(t, err)

	require.NoError(t, g.Disconnect(ctx, edge.ID))

	fromA, err := g.BySource(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, fromA)
	fromB, err := g.BySource(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, fromB)
}

func TestNeighborsCarriesDenormalizedSnapshot(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Denormalize = []string{"name"}
	g, vertices := newOverlay(t, cfg)

	_, err := vertices.Insert(ctx, map[string]any{"id": "b", "name": "Bob"})
	require.NoError(t, err)

	_, err = g.Connect(ctx, "a", "b", ConnectOpts{})
	require.NoError(t, err)

	neighbors, err := g.Neighbors(ctx, "a", DirectionOut)
	require.NoError(t, err)
	require.Len(t, neighbors, 1)
	assert.Equal(t, "b", neighbors[0].VertexID)
	assert.Equal(t, "Bob", neighbors[0].Edge.Snapshot["name"])
}

func TestDegreeCountsOutgoingAndIncoming(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	_, err := g.Connect(ctx, "a", "b", ConnectOpts{})
	require.NoError(t, err)
	_, err = g.Connect(ctx, "c", "a", ConnectOpts{})
	require.NoError(t, err)

	out, in, err := g.Degree(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, out)
	assert.Equal(t, 1, in)
}

func TestShortestPathFindsCheapestRoute(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.WeightField = "cost"
	g, _ := newOverlay(t, cfg)

	_, err := g.Connect(ctx, "a", "b", ConnectOpts{Data: map[string]any{"cost": 5.0}})
	require.NoError(t, err)
	_, err = g.Connect(ctx, "a", "c", ConnectOpts{Data: map[string]any{"cost": 1.0}})
	require.NoError(t, err)
	_, err = g.Connect(ctx, "c", "b", ConnectOpts{Data: map[string]any{"cost": 1.0}})
	require.NoError(t, err)

	result, err := g.ShortestPath(ctx, "a", "b", PathOpts{ReturnPath: true, IncludeStats: true})
	require.NoError(t, err)
	assert.Equal(t, 2.0, result.Distance)
	assert.Equal(t, []string{"a", "c", "b"}, result.Path)
	assert.Greater(t, result.Iterations, 0)
}

func TestShortestPathReturnsNotFoundWhenDisconnected(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	_, err := g.Connect(ctx, "a", "b", ConnectOpts{})
	require.NoError(t, err)

	_, err = g.ShortestPath(ctx, "a", "z", PathOpts{})
	var notFound *PathNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestShortestPathHonorsMaxDepth(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	_, err := g.Connect(ctx, "a", "b", ConnectOpts{})
	require.NoError(t, err)
	_, err = g.Connect(ctx, "b", "c", ConnectOpts{})
	require.NoError(t, err)
	_, err = g.Connect(ctx, "c", "d", ConnectOpts{})
	require.NoError(t, err)

	_, err = g.ShortestPath(ctx, "a", "d", PathOpts{MaxDepth: 1})
	var notFound *PathNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestTraverseBFSVisitsLevelByLevel(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	// a -> b -> c -> d is a single chain, so sibling-ordering
	// ambiguity (edge partition keys are suffixed by random edge ids,
	// not insertion order) never enters into it: BFS and DFS alike
	// must visit it start to end.
	require.NoError(t, connectAll(ctx, g, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}}))

	order, err := g.Traverse(ctx, "a", TraverseOpts{Mode: ModeBFS})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestTraverseDFSVisitsDepthFirst(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	require.NoError(t, connectAll(ctx, g, [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}}))

	order, err := g.Traverse(ctx, "a", TraverseOpts{Mode: ModeDFS})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}

func TestTraverseBranchesVisitAllNodesAtCorrectDepth(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	// a branches to b and c (sibling order is unspecified); d is only
	// reachable through b, so it must appear after both siblings.
	require.NoError(t, connectAll(ctx, g, [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}}))

	order, err := g.Traverse(ctx, "a", TraverseOpts{Mode: ModeBFS})
	require.NoError(t, err)
	require.Len(t, order, 4)
	assert.Equal(t, "a", order[0])
	assert.ElementsMatch(t, []string{"b", "c"}, order[1:3])
	assert.Equal(t, "d", order[3])
}

func TestTraverseVisitorPrunesDescendantsButKeepsNode(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	require.NoError(t, connectAll(ctx, g, [][2]string{{"a", "b"}, {"b", "c"}}))

	order, err := g.Traverse(ctx, "a", TraverseOpts{
		Mode:    ModeBFS,
		Visitor: func(node string) bool { return node != "b" },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestWouldCreateCycleDetectsBackEdge(t *testing.T) {
	ctx := context.Background()
	g, _ := newOverlay(t, DefaultConfig())

	require.NoError(t, connectAll(ctx, g, [][2]string{{"a", "b"}, {"b", "c"}}))

	would, err := g.WouldCreateCycle(ctx, "c", "a")
	require.NoError(t, err)
	assert.True(t, would)

	would, err = g.WouldCreateCycle(ctx, "a", "c")
	require.NoError(t, err)
	assert.False(t, would)
}

func connectAll(ctx context.Context, g *Overlay, pairs [][2]string) error {
	for _, p := range pairs {
		if _, err := g.Connect(ctx, p[0], p[1], ConnectOpts{}); err != nil {
			return err
		}
	}
	return nil
}
