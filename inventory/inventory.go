// Package inventory implements the content-addressed snapshot engine:
// each registered cluster's resources are discovered through a
// driver-supplied iterator, normalized, digested, and reconciled
// against their previous snapshot to produce created/unchanged/updated
// outcomes with an append-only version history.
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evalgo-org/objectdb/cronmgr"
	"github.com/evalgo-org/objectdb/idgen"
	"github.com/evalgo-org/objectdb/kv"
	"github.com/evalgo-org/objectdb/resource"
	"github.com/evalgo-org/objectdb/store"
)

// Item is one discovered resource, normalized by the driver before it
// reaches persistSnapshot.
type Item struct {
	ClusterID     string
	ResourceType  string
	Namespace     string
	ResourceID    string
	UID           string
	Name          string
	APIVersion    string
	Kind          string
	Labels        map[string]any
	Annotations   map[string]any
	Configuration map[string]any
	Raw           map[string]any
}

// Driver discovers items for one cluster, streaming them on the
// returned item channel. Both channels are closed once discovery
// completes; at most one error is ever sent on the error channel.
type Driver interface {
	Discover(ctx context.Context, clusterID string) (<-chan Item, <-chan error)
}

// Result is returned by persistSnapshot for a single item.
type Result struct {
	Status SnapshotStatus
	Key    string
	Digest string
	Error  error
}

// SnapshotStatus reports what persisting a snapshot did.
type SnapshotStatus string

const (
	StatusCreated   SnapshotStatus = "created"
	StatusUnchanged SnapshotStatus = "unchanged"
	StatusUpdated   SnapshotStatus = "updated"
	StatusError     SnapshotStatus = "error"
)

// Config controls one Engine's lease timing and scheduling.
type Config struct {
	LockTTL     time.Duration
	LockTimeout time.Duration
	Location    *time.Location
}

// DefaultConfig returns reasonable lease timing for a sync expected to
// run for tens of seconds to a few minutes.
func DefaultConfig() Config {
	return Config{
		LockTTL:     2 * time.Minute,
		LockTimeout: 0,
	}
}

// Engine is the snapshot/diff/history engine plus per-cluster
// scheduling over a set of registered clusters.
type Engine struct {
	cfg          Config
	snapshots    *resource.Resource
	versions     *resource.Resource
	changes      *resource.Resource
	syncStatuses *resource.Resource
	leases       *kv.Store
	cron         *cronmgr.Manager
	driver       Driver
	clusters     map[string]ClusterConfig
}

// ClusterConfig names one registered source and its filter/schedule.
type ClusterConfig struct {
	ID         string
	Select     []Pattern
	Ignore     []Pattern
	Schedule   string
	RunOnStart bool
}

// New constructs an Engine backed by four resources (snapshot,
// version history, change log, sync status) and a driver used for
// discovery.
func New(cfg Config, backend store.Store, driver Driver) *Engine {
	snapshots := resource.New("inventory_snapshots", backend, resource.Options{
		Behavior: resource.BodyOnly,
		Partitions: []resource.PartitionSpec{
			{Name: "cluster", Field: "clusterId"},
		},
	})
	versions := resource.New("inventory_versions", backend, resource.Options{
		Behavior: resource.BodyOnly,
		Partitions: []resource.PartitionSpec{
			{Name: "snapshot", Field: "snapshotKey"},
		},
	})
	changes := resource.New("inventory_changes", backend, resource.Options{
		Behavior: resource.BodyOnly,
		Partitions: []resource.PartitionSpec{
			{Name: "snapshot", Field: "snapshotKey"},
		},
	})
	syncStatuses := resource.New("inventory_sync_status", backend, resource.Options{
		Behavior: resource.BodyOnly,
	})
	return &Engine{
		cfg:          cfg,
		snapshots:    snapshots,
		versions:     versions,
		changes:      changes,
		syncStatuses: syncStatuses,
		leases:       kv.New(backend, "inventory"),
		cron:         cronmgr.New(cfg.Location),
		driver:       driver,
		clusters:     make(map[string]ClusterConfig),
	}
}

func (e *Engine) statuses() *resource.Resource { return e.syncStatuses }

// RegisterCluster adds or replaces a cluster's filter/schedule config.
func (e *Engine) RegisterCluster(cc ClusterConfig) {
	e.clusters[cc.ID] = cc
}

// snapshotKey is the canonical identity of one discovered resource
// across syncs: <cluster>::<type>::<namespace|'cluster'>::<resourceId>.
func snapshotKey(clusterID, resourceType, namespace, resourceID string) string {
	ns := namespace
	if ns == "" {
		ns = "cluster"
	}
	return strings.Join([]string{clusterID, resourceType, ns, resourceID}, "::")
}

func syncLeaseKey(clusterID string) string {
	return fmt.Sprintf("k8s-inventory-sync-%s", clusterID)
}

func digestOf(configuration map[string]any) (string, error) {
	d, err := idgen.Digest(configuration)
	if err != nil {
		return "", fmt.Errorf("inventory: digest: %w", err)
	}
	return d, nil
}
