package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/evalgo-org/objectdb/resource"
)

func versionKey(key string, version int) string {
	return fmt.Sprintf("%s::v%d", key, version)
}

// persistSnapshot reconciles one discovered item against its existing
// snapshot (if any), following spec.md's five-step contract: digest,
// load, absent/same/different.
func (e *Engine) persistSnapshot(ctx context.Context, item Item) Result {
	digest, err := digestOf(item.Configuration)
	if err != nil {
		return Result{Status: StatusError, Error: err}
	}
	key := snapshotKey(item.ClusterID, item.ResourceType, item.Namespace, item.ResourceID)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	existing, err := e.snapshots.GetOrNull(ctx, key)
	if err != nil {
		return Result{Status: StatusError, Key: key, Error: err}
	}

	if existing == nil {
		if _, err := e.versions.Insert(ctx, map[string]any{
			"id":            versionKey(key, 1),
			"snapshotKey":   key,
			"version":       1,
			"digest":        digest,
			"configuration": item.Configuration,
			"createdAt":     now,
		}); err != nil {
			return Result{Status: StatusError, Key: key, Error: fmt.Errorf("inventory: insert version 1 for %q: %w", key, err)}
		}
		if _, err := e.snapshots.Insert(ctx, map[string]any{
			"id":            key,
			"clusterId":     item.ClusterID,
			"resourceType":  item.ResourceType,
			"namespace":     item.Namespace,
			"resourceId":    item.ResourceID,
			"uid":           item.UID,
			"name":          item.Name,
			"apiVersion":    item.APIVersion,
			"kind":          item.Kind,
			"labels":        item.Labels,
			"annotations":   item.Annotations,
			"latestDigest":  digest,
			"latestVersion": 1,
			"changelogSize": 0,
			"lastSeenAt":    now,
		}); err != nil {
			return Result{Status: StatusError, Key: key, Error: fmt.Errorf("inventory: insert snapshot %q: %w", key, err)}
		}
		return Result{Status: StatusCreated, Key: key, Digest: digest}
	}

	if existing["latestDigest"] == digest {
		if _, err := e.snapshots.Update(ctx, key, map[string]any{
			"lastSeenAt": now,
		}); err != nil {
			return Result{Status: StatusError, Key: key, Error: fmt.Errorf("inventory: touch snapshot %q: %w", key, err)}
		}
		return Result{Status: StatusUnchanged, Key: key, Digest: digest}
	}

	latestVersion := intOf(existing["latestVersion"])
	newVersion := latestVersion + 1

	prev, err := e.versions.GetOrNull(ctx, versionKey(key, latestVersion))
	if err != nil {
		return Result{Status: StatusError, Key: key, Error: fmt.Errorf("inventory: load previous version %q: %w", key, err)}
	}
	var prevConfig map[string]any
	if prev != nil {
		prevConfig, _ = prev["configuration"].(map[string]any)
	}

	d := diffConfig(prevConfig, item.Configuration)

	if _, err := e.changes.Insert(ctx, map[string]any{
		"id":          key + "::" + fmt.Sprint(newVersion),
		"snapshotKey": key,
		"fromVersion": latestVersion,
		"toVersion":   newVersion,
		"added":       d.Added,
		"removed":     d.Removed,
		"updated":     d.Updated,
		"createdAt":   now,
	}); err != nil {
		return Result{Status: StatusError, Key: key, Error: fmt.Errorf("inventory: insert change for %q: %w", key, err)}
	}

	if _, err := e.versions.Insert(ctx, map[string]any{
		"id":            versionKey(key, newVersion),
		"snapshotKey":   key,
		"version":       newVersion,
		"digest":        digest,
		"configuration": item.Configuration,
		"createdAt":     now,
	}); err != nil {
		return Result{Status: StatusError, Key: key, Error: fmt.Errorf("inventory: insert version %d for %q: %w", newVersion, key, err)}
	}

	changelogSize := intOf(existing["changelogSize"])
	if _, err := e.snapshots.Update(ctx, key, map[string]any{
		"latestDigest":  digest,
		"latestVersion": newVersion,
		"changelogSize": changelogSize + 1,
		"labels":        item.Labels,
		"annotations":   item.Annotations,
		"lastSeenAt":    now,
	}); err != nil {
		return Result{Status: StatusError, Key: key, Error: fmt.Errorf("inventory: patch snapshot %q: %w", key, err)}
	}

	return Result{Status: StatusUpdated, Key: key, Digest: digest}
}

// Snapshot returns the current snapshot record for key, or nil if
// none exists.
func (e *Engine) Snapshot(ctx context.Context, key string) (map[string]any, error) {
	return e.snapshots.GetOrNull(ctx, key)
}

// History returns every version record for key, oldest first.
func (e *Engine) History(ctx context.Context, key string) ([]map[string]any, error) {
	records, err := e.versions.ListPartition(ctx, resource.ListPartitionOpts{Partition: "snapshot", Value: key})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return intOf(records[i]["version"]) < intOf(records[j]["version"])
	})
	return records, nil
}

// Changes returns every change record for key.
func (e *Engine) Changes(ctx context.Context, key string) ([]map[string]any, error) {
	return e.changes.ListPartition(ctx, resource.ListPartitionOpts{Partition: "snapshot", Value: key})
}

// SnapshotsForCluster returns every snapshot currently recorded for
// clusterID.
func (e *Engine) SnapshotsForCluster(ctx context.Context, clusterID string) ([]map[string]any, error) {
	return e.snapshots.ListPartition(ctx, resource.ListPartitionOpts{Partition: "cluster", Value: clusterID})
}

func intOf(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}
