package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo-org/objectdb/kv"
	"github.com/evalgo-org/objectdb/store"
)

func newTestCoordinator(t *testing.T, name, workerID string) *Coordinator {
	t.Helper()
	backend := kv.New(store.NewMemoryStore(), "coordinator-test")
	cfg := DefaultConfig(name, workerID)
	cfg.LeaseTTL = 50 * time.Millisecond
	cfg.ColdStartPhaseDuration = 10 * time.Millisecond
	return New(backend, cfg)
}

func TestFirstCandidateWinsLeadership(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, "queue-a", "worker-1")

	require.NoError(t, c.tick(ctx))
	assert.True(t, c.IsLeader())
}

func TestSecondCandidateLosesWhileLeaseHeld(t *testing.T) {
	ctx := context.Background()
	backend := kv.New(store.NewMemoryStore(), "coordinator-test")
	cfg := DefaultConfig("queue-a", "")

	a := New(backend, Config{Name: "queue-a", WorkerID: "worker-1", LeaseTTL: time.Second})
	b := New(backend, Config{Name: "queue-a", WorkerID: "worker-2", LeaseTTL: time.Second})
	_ = cfg

	require.NoError(t, a.tick(ctx))
	require.NoError(t, b.tick(ctx))

	assert.True(t, a.IsLeader())
	assert.False(t, b.IsLeader())
}

func TestLeadershipTransfersAfterExpiry(t *testing.T) {
	ctx := context.Background()
	backend := kv.New(store.NewMemoryStore(), "coordinator-test")

	a := New(backend, Config{Name: "queue-a", WorkerID: "worker-1", LeaseTTL: 10 * time.Millisecond})
	b := New(backend, Config{Name: "queue-a", WorkerID: "worker-2", LeaseTTL: 10 * time.Millisecond})

	require.NoError(t, a.tick(ctx))
	assert.True(t, a.IsLeader())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.tick(ctx))
	assert.True(t, b.IsLeader())
}

func TestElectedEventFiresOnce(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, "queue-a", "worker-1")

	var elections int
	c.Elected.Subscribe(func(ElectedEvent) { elections++ })

	require.NoError(t, c.tick(ctx))
	require.NoError(t, c.tick(ctx)) // renew, should not re-elect
	assert.Equal(t, 1, elections)
}

func TestColdStartPhaseAdvancesAfterHoldDuration(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, "queue-a", "worker-1")

	require.NoError(t, c.tick(ctx))
	assert.Equal(t, PhaseDiscovery, c.Phase())

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, c.tick(ctx))
	assert.Equal(t, PhasePreparation, c.Phase())
}

func TestHeartbeatReportsWorkerAlive(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator(t, "queue-a", "worker-1")

	require.NoError(t, c.Heartbeat(ctx, "worker-9"))

	alive, err := c.IsWorkerAlive(ctx, "worker-9")
	require.NoError(t, err)
	assert.True(t, alive)

	_, err = c.IsWorkerAlive(ctx, "worker-unknown")
	require.NoError(t, err)
}

func TestLiveWorkersListsOnlyUnexpired(t *testing.T) {
	ctx := context.Background()
	backend := kv.New(store.NewMemoryStore(), "coordinator-test")
	c := New(backend, Config{Name: "queue-a", WorkerID: "worker-1", HeartbeatTTL: 10 * time.Millisecond})

	require.NoError(t, c.Heartbeat(ctx, "worker-1"))
	require.NoError(t, c.Heartbeat(ctx, "worker-2"))
	time.Sleep(20 * time.Millisecond)

	fresh := New(backend, Config{Name: "queue-a", WorkerID: "worker-3", HeartbeatTTL: time.Minute})
	require.NoError(t, fresh.Heartbeat(ctx, "worker-3"))

	live, err := c.LiveWorkers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"worker-3"}, live)
}

func TestReleaseAllowsImmediateReelection(t *testing.T) {
	ctx := context.Background()
	backend := kv.New(store.NewMemoryStore(), "coordinator-test")

	a := New(backend, Config{Name: "queue-a", WorkerID: "worker-1", LeaseTTL: time.Minute})
	b := New(backend, Config{Name: "queue-a", WorkerID: "worker-2", LeaseTTL: time.Minute})

	require.NoError(t, a.tick(ctx))
	require.NoError(t, a.Release(ctx))
	assert.False(t, a.IsLeader())

	require.NoError(t, b.tick(ctx))
	assert.True(t, b.IsLeader())
}
