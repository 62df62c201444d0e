package replication

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo-org/objectdb/resource"
	"github.com/evalgo-org/objectdb/store"
)

type mockReplicator struct {
	id          string
	mu          sync.Mutex
	calls       []map[string]any
	failUntil   int
	callCount   int
	alwaysError error
}

func (m *mockReplicator) ID() string { return m.id }

func (m *mockReplicator) ShouldReplicate(resourceName string, op Op) bool { return true }

func (m *mockReplicator) Replicate(ctx context.Context, resourceName string, op Op, id string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.calls = append(m.calls, data)
	if m.alwaysError != nil {
		return m.alwaysError
	}
	if m.callCount <= m.failUntil {
		return errors.New("transient failure")
	}
	return nil
}

func newOrdersResource(backend store.Store) *resource.Resource {
	return resource.New("orders", backend, resource.Options{Behavior: resource.BodyOnly})
}

func TestInsertFansOutToAllInterestedReplicators(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	orders := newOrdersResource(backend)
	log := resource.New("plg_replicator_log", backend, resource.Options{Behavior: resource.BodyOnly})

	r1 := &mockReplicator{id: "r1"}
	r2 := &mockReplicator{id: "r2"}

	cfg := DefaultConfig()
	fabric := New(cfg, log, r1, r2)
	fabric.Attach(orders)

	_, err := orders.Insert(ctx, map[string]any{"id": "o1", "sku": "widget"})
	require.NoError(t, err)

	assert.Equal(t, 1, r1.callCount)
	assert.Equal(t, 1, r2.callCount)
}

func TestReplicatorSucceedsAfterRetries(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	orders := newOrdersResource(backend)
	log := resource.New("plg_replicator_log", backend, resource.Options{Behavior: resource.BodyOnly})

	flaky := &mockReplicator{id: "flaky", failUntil: 2}

	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	fabric := New(cfg, log, flaky)
	fabric.Attach(orders)

	var replicated int
	fabric.Replicated.Subscribe(func(ReplicatedEvent) { replicated++ })

	_, err := orders.Insert(ctx, map[string]any{"id": "o1", "sku": "widget"})
	require.NoError(t, err)

	assert.Equal(t, 3, flaky.callCount)
	assert.Equal(t, 1, replicated)
}

func TestFailureAfterExhaustingRetriesIsLogged(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	orders := newOrdersResource(backend)
	log := resource.New("plg_replicator_log", backend, resource.Options{Behavior: resource.BodyOnly})

	broken := &mockReplicator{id: "broken", alwaysError: errors.New("boom")}

	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	fabric := New(cfg, log, broken)
	fabric.Attach(orders)

	var errored int
	fabric.Error.Subscribe(func(ErrorEvent) { errored++ })

	_, err := orders.Insert(ctx, map[string]any{"id": "o1", "sku": "widget"})
	require.NoError(t, err)

	assert.Equal(t, 1, errored)

	rows, err := log.Query(ctx, func(data map[string]any) bool {
		status, _ := data["status"].(string)
		return status == string(LogFailed)
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestOneReplicatorFailureDoesNotBlockAnother(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	orders := newOrdersResource(backend)
	log := resource.New("plg_replicator_log", backend, resource.Options{Behavior: resource.BodyOnly})

	good := &mockReplicator{id: "good"}
	bad := &mockReplicator{id: "bad", alwaysError: errors.New("down")}

	fabric := New(DefaultConfig(), log, good, bad)
	fabric.Attach(orders)

	_, err := orders.Insert(ctx, map[string]any{"id": "o1", "sku": "widget"})
	require.NoError(t, err)

	assert.Equal(t, 1, good.callCount)
	assert.GreaterOrEqual(t, bad.callCount, 1)
}

func TestResourceBlocklistSuppressesListeners(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	orders := newOrdersResource(backend)
	log := resource.New("plg_replicator_log", backend, resource.Options{Behavior: resource.BodyOnly})

	r1 := &mockReplicator{id: "r1"}

	cfg := DefaultConfig()
	cfg.ResourceBlocklist = []string{"Orders"}
	fabric := New(cfg, log, r1)
	fabric.Attach(orders)

	_, err := orders.Insert(ctx, map[string]any{"id": "o1", "sku": "widget"})
	require.NoError(t, err)

	assert.Equal(t, 0, r1.callCount)
}

func TestSyncAllReplaysEveryRecord(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	orders := newOrdersResource(backend)
	log := resource.New("plg_replicator_log", backend, resource.Options{Behavior: resource.BodyOnly})

	r1 := &mockReplicator{id: "r1"}
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	fabric := New(cfg, log, r1)
	fabric.Attach(orders)

	for i := 0; i < 5; i++ {
		_, err := orders.Insert(ctx, map[string]any{"sku": "widget"})
		require.NoError(t, err)
	}
	r1.callCount = 0 // ignore the inline replication from Insert above
	r1.calls = nil

	require.NoError(t, fabric.SyncAll(ctx, "r1"))
	assert.Equal(t, 5, r1.callCount)
}

func TestRetryFailedFlipsLogRowToSuccess(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	orders := newOrdersResource(backend)
	log := resource.New("plg_replicator_log", backend, resource.Options{Behavior: resource.BodyOnly})

	flaky := &mockReplicator{id: "flaky", failUntil: 1000} // fails during insert fan-out
	cfg := DefaultConfig()
	cfg.MaxRetries = 1
	fabric := New(cfg, log, flaky)
	fabric.Attach(orders)

	_, err := orders.Insert(ctx, map[string]any{"id": "o1", "sku": "widget"})
	require.NoError(t, err)

	rows, err := log.Query(ctx, func(data map[string]any) bool {
		status, _ := data["status"].(string)
		return status == string(LogFailed)
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	flaky.mu.Lock()
	flaky.failUntil = 0
	flaky.mu.Unlock()

	require.NoError(t, fabric.RetryFailed(ctx))

	rows, err = log.Query(ctx, func(data map[string]any) bool {
		status, _ := data["status"].(string)
		return status == string(LogSuccess)
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
