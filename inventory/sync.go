package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo-org/objectdb/idgen"
	"github.com/evalgo-org/objectdb/store"
)

// ClusterStatus is a sync's lifecycle state.
type ClusterStatus string

const (
	ClusterIdle    ClusterStatus = "idle"
	ClusterRunning ClusterStatus = "running"
	ClusterError   ClusterStatus = "error"
)

// Counters tallies per-item outcomes for one sync run.
type Counters struct {
	Created   int `json:"created"`
	Unchanged int `json:"unchanged"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// Summary is the per-cluster sync status written at start, on
// progress, and at end of each sync.
type Summary struct {
	ClusterID  string        `json:"clusterId"`
	Status     ClusterStatus `json:"status"`
	LastRunAt  string        `json:"lastRunAt"`
	LastResult string        `json:"lastResult"`
	Checkpoint string        `json:"checkpoint"`
	State      Counters      `json:"state"`
}

func (e *Engine) putSummary(ctx context.Context, s Summary) error {
	existing, err := e.statuses().GetOrNull(ctx, s.ClusterID)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"id":         s.ClusterID,
		"clusterId":  s.ClusterID,
		"status":     string(s.Status),
		"lastRunAt":  s.LastRunAt,
		"lastResult": s.LastResult,
		"checkpoint": s.Checkpoint,
		"state": map[string]any{
			"created":   s.State.Created,
			"unchanged": s.State.Unchanged,
			"updated":   s.State.Updated,
			"errors":    s.State.Errors,
		},
	}
	if existing == nil {
		_, err = e.statuses().Insert(ctx, fields)
		return err
	}
	_, err = e.statuses().Update(ctx, s.ClusterID, fields)
	return err
}

// Status returns the last-recorded sync summary for clusterID, or nil
// if it has never synced.
func (e *Engine) Status(ctx context.Context, clusterID string) (map[string]any, error) {
	return e.statuses().GetOrNull(ctx, clusterID)
}

// Sync runs one discovery pass for clusterID, guarded by the
// per-cluster sync lease. A try-once lease (LockTimeout == 0) returns
// immediately if the lease is already held; otherwise it retries on a
// short interval until LockTimeout elapses. An Engine built without a
// driver skips the sync and returns zero counters.
func (e *Engine) Sync(ctx context.Context, clusterID string) (Counters, error) {
	cc, ok := e.clusters[clusterID]
	if !ok {
		cc = ClusterConfig{ID: clusterID}
	}
	if e.driver == nil {
		return Counters{}, nil
	}

	owner := idgen.New()
	if err := e.acquireSyncLease(ctx, clusterID, owner); err != nil {
		return Counters{}, err
	}
	defer e.leases.Release(ctx, syncLeaseKey(clusterID), owner)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := e.putSummary(ctx, Summary{ClusterID: clusterID, Status: ClusterRunning, LastRunAt: now}); err != nil {
		return Counters{}, fmt.Errorf("inventory: write running summary for %q: %w", clusterID, err)
	}

	var counters Counters
	items, errs := e.driver.Discover(ctx, clusterID)

	for item := range items {
		if !admit(cc, item) {
			continue
		}
		result := e.persistSnapshot(ctx, item)
		switch result.Status {
		case StatusCreated:
			counters.Created++
		case StatusUnchanged:
			counters.Unchanged++
		case StatusUpdated:
			counters.Updated++
		default:
			counters.Errors++
		}
		_ = e.putSummary(ctx, Summary{
			ClusterID:  clusterID,
			Status:     ClusterRunning,
			LastRunAt:  now,
			Checkpoint: result.Key,
			State:      counters,
		})
	}

	var syncErr error
	select {
	case err, ok := <-errs:
		if ok && err != nil {
			syncErr = err
		}
	default:
	}

	final := Summary{ClusterID: clusterID, LastRunAt: now, State: counters}
	if syncErr != nil {
		final.Status = ClusterError
		final.LastResult = syncErr.Error()
	} else {
		final.Status = ClusterIdle
		final.LastResult = "ok"
	}
	if err := e.putSummary(ctx, final); err != nil {
		return counters, fmt.Errorf("inventory: write final summary for %q: %w", clusterID, err)
	}
	return counters, syncErr
}

func (e *Engine) acquireSyncLease(ctx context.Context, clusterID, owner string) error {
	key := syncLeaseKey(clusterID)
	ttl := e.cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultConfig().LockTTL
	}

	deadline := time.Now().Add(e.cfg.LockTimeout)
	for {
		_, err := e.leases.Acquire(ctx, key, owner, ttl)
		if err == nil {
			return nil
		}
		if !store.IsPreconditionFailed(err) {
			return fmt.Errorf("inventory: acquire sync lease %q: %w", key, err)
		}
		if e.cfg.LockTimeout <= 0 || time.Now().After(deadline) {
			return fmt.Errorf("inventory: sync lease %q held by another sync", key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
