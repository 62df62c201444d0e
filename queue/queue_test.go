package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalgo-org/objectdb/coordinator"
	"github.com/evalgo-org/objectdb/kv"
	"github.com/evalgo-org/objectdb/resource"
	"github.com/evalgo-org/objectdb/store"
)

func newTestQueue(t *testing.T, cfg Config) *Queue {
	t.Helper()
	backend := store.NewMemoryStore()

	entries := resource.New(cfg.Name+"_entries", backend, resource.Options{
		Behavior:   resource.BodyOnly,
		Partitions: []resource.PartitionSpec{{Name: statusPartition, Field: "status"}},
	})
	tickets := resource.New(cfg.Name+"_tickets", backend, resource.Options{
		Behavior:   resource.BodyOnly,
		Partitions: []resource.PartitionSpec{{Name: statusPartition, Field: "status"}},
	})
	dead := resource.New(cfg.Name+"_dead", backend, resource.Options{Behavior: resource.BodyOnly})

	leases := kv.New(backend, "queue-test")

	q, err := New(cfg, entries, tickets, dead, leases, nil, "")
	require.NoError(t, err)
	return q
}

func TestEnqueueThenClaimSucceeds(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig("orders")
	q := newTestQueue(t, cfg)

	enqueued, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, enqueued.ID, claimed.ID)
	assert.Equal(t, StatusProcessing, claimed.Status)
	assert.Equal(t, "worker-1", claimed.ClaimedBy)
	assert.NotEmpty(t, claimed.LockToken)
}

func TestClaimReturnsNilWhenEmpty(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, DefaultConfig("orders"))

	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestSecondClaimFindsNothingAfterFirstWins(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, DefaultConfig("orders"))

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)

	first, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := q.Claim(ctx, "worker-2")
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestCompleteMarksEntryCompleted(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, DefaultConfig("orders"))

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)

	require.NoError(t, q.Complete(ctx, claimed.ID, claimed.LockToken))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Processing)
}

func TestCompleteRejectsStaleLockToken(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, DefaultConfig("orders"))

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)

	err = q.Complete(ctx, claimed.ID, "wrong-token")
	var rejected *RenewRejectedError
	assert.ErrorAs(t, err, &rejected)
	assert.Equal(t, ReasonTokenMismatch, rejected.Reason)
}

func TestFailRetriesUntilMaxAttemptsThenFails(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig("orders")
	cfg.MaxAttempts = 2
	cfg.FailureStrategy = StrategyRetry
	q := newTestQueue(t, cfg)

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, claimed.ID, claimed.LockToken, errors.New("boom")))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)

	// A retried entry becomes visible again only after its backoff.
	time.Sleep(backoff(claimed.Attempts) + 10*time.Millisecond)

	claimed, err = q.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.NoError(t, q.Fail(ctx, claimed.ID, claimed.LockToken, errors.New("boom again")))

	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
}

func TestFailDeadLettersOnDeadLetterStrategy(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig("orders")
	cfg.FailureStrategy = StrategyDeadLetter
	q := newTestQueue(t, cfg)

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, claimed.ID, claimed.LockToken, errors.New("permanent")))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Dead)

	deadRecords, err := q.dead.List(ctx, resourceListOptsForTest())
	require.NoError(t, err)
	require.Len(t, deadRecords, 1)
	assert.Equal(t, claimed.ID, deadRecords[0]["originalId"])
}

func TestRenewLockExtendsVisibility(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, DefaultConfig("orders"))

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)

	require.NoError(t, q.RenewLock(ctx, claimed.ID, claimed.LockToken, time.Minute))
}

func TestRenewLockRejectsMismatchedToken(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, DefaultConfig("orders"))

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)

	err = q.RenewLock(ctx, claimed.ID, "bogus", time.Minute)
	var rejected *RenewRejectedError
	assert.ErrorAs(t, err, &rejected)
	assert.Equal(t, ReasonTokenMismatch, rejected.Reason)
}

func TestRecoverRevertsTimedOutProcessingEntries(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig("orders")
	cfg.VisibilityTimeout = time.Millisecond
	q := newTestQueue(t, cfg)

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)
	_, err = q.Claim(ctx, "worker-1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, q.Recover(ctx))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.Processing)
}

func TestRecoverDoesNotResurrectCompletedEntry(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig("orders")
	cfg.VisibilityTimeout = time.Millisecond
	q := newTestQueue(t, cfg)

	_, err := q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, q.Complete(ctx, claimed.ID, claimed.LockToken))

	// Complete never touches visibleAt, so the claim-time deadline lapses
	// shortly after; Recover must leave the completed entry alone.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, q.Recover(ctx))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, 0, stats.Processing)
}

func TestClaimViaCoordinatorTickets(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryStore()
	cfg := DefaultConfig("orders")

	entries := resource.New(cfg.Name+"_entries", backend, resource.Options{
		Behavior:   resource.BodyOnly,
		Partitions: []resource.PartitionSpec{{Name: statusPartition, Field: "status"}},
	})
	tickets := resource.New(cfg.Name+"_tickets", backend, resource.Options{
		Behavior:   resource.BodyOnly,
		Partitions: []resource.PartitionSpec{{Name: statusPartition, Field: "status"}},
	})
	dead := resource.New(cfg.Name+"_dead", backend, resource.Options{Behavior: resource.BodyOnly})
	leases := kv.New(backend, "queue-test")

	coordBackend := kv.New(backend, "coordinator-test")
	coord := coordinator.New(coordBackend, coordinator.Config{
		Name: "orders", WorkerID: "leader-1", LeaseTTL: time.Minute, ColdStartEnabled: false,
	})

	q, err := New(cfg, entries, tickets, dead, leases, coord, "")
	require.NoError(t, err)

	_, err = q.Enqueue(ctx, map[string]any{"sku": "widget"})
	require.NoError(t, err)

	require.NoError(t, coord.Elect(ctx))
	require.True(t, coord.IsLeader())

	require.NoError(t, q.PublishTickets(ctx))

	claimed, err := q.Claim(ctx, "worker-1")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	remainingTickets, err := tickets.ListIds(ctx)
	require.NoError(t, err)
	assert.Empty(t, remainingTickets)
}

func resourceListOptsForTest() resource.ListOpts {
	return resource.ListOpts{}
}
