// Package queue implements the durable work queue: an S3Queue whose
// entries live in a resource.Resource and whose claim protocol is
// built entirely on conditional blob-store writes rather than a
// message broker.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/evalgo-org/objectdb/coordinator"
	"github.com/evalgo-org/objectdb/idgen"
	"github.com/evalgo-org/objectdb/kv"
	"github.com/evalgo-org/objectdb/resource"
)

// Status is a queue entry's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDead       Status = "dead"
)

// FailureStrategy controls what happens when a handler reports failure.
type FailureStrategy string

const (
	StrategyRetry      FailureStrategy = "retry"
	StrategyDeadLetter FailureStrategy = "dead-letter"
	StrategyHybrid     FailureStrategy = "hybrid"
)

// Config controls one queue's behavior.
type Config struct {
	Name              string
	LockTTL           time.Duration
	OrderingLockTTL   time.Duration
	VisibilityTimeout time.Duration
	PollBatchSize     int
	RecoveryInterval  time.Duration
	TicketBatchSize   int
	HeartbeatTTL      time.Duration
	OrderingGuarantee bool
	FailureStrategy   FailureStrategy
	MaxAttempts       int
}

// DefaultConfig returns reasonable defaults matching the timing ratios
// used elsewhere in the platform (lease TTLs a few multiples of the
// expected work duration).
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		LockTTL:           5 * time.Second,
		OrderingLockTTL:   250 * time.Millisecond,
		VisibilityTimeout: 30 * time.Second,
		PollBatchSize:     50,
		RecoveryInterval:  10 * time.Second,
		TicketBatchSize:   20,
		HeartbeatTTL:      30 * time.Second,
		OrderingGuarantee: false,
		FailureStrategy:   StrategyRetry,
		MaxAttempts:       5,
	}
}

// Queue is a durable, lease-protected work queue.
type Queue struct {
	cfg     Config
	entries *resource.Resource
	tickets *resource.Resource
	dead    *resource.Resource
	leases  *kv.Store
	coord   *coordinator.Coordinator
	markers *markerCache
}

// New constructs a Queue. entries/tickets/dead are resources dedicated
// to this queue (callers typically name them "<name>_entries" etc.).
// leases is the kv.Store backing entry/ordering lease primitives. coord
// may be nil if this process never acts as a ticket-dispatching
// coordinator for this queue; markerPath, if non-empty, backs the
// recently-processed marker with a durable bbolt store in addition to
// the in-process cache.
func New(cfg Config, entries, tickets, dead *resource.Resource, leases *kv.Store, coord *coordinator.Coordinator, markerPath string) (*Queue, error) {
	m, err := newMarkerCache(markerPath)
	if err != nil {
		return nil, err
	}
	return &Queue{
		cfg:     cfg,
		entries: entries,
		tickets: tickets,
		dead:    dead,
		leases:  leases,
		coord:   coord,
		markers: m,
	}, nil
}

// Entry is a queue entry's current state, returned by Enqueue and Claim.
type Entry struct {
	ID              string
	Data            map[string]any
	Status          Status
	VisibleAt       time.Time
	Attempts        int
	MaxAttempts     int
	QueuedAt        time.Time
	ClaimedBy       string
	ClaimedAt       time.Time
	LockToken       string
	FailureStrategy FailureStrategy
	ETag            string
}

func entryFromRecord(rec map[string]any) Entry {
	e := Entry{
		ID:              stringField(rec, "id"),
		Status:          Status(stringField(rec, "status")),
		Attempts:        intField(rec, "attempts"),
		MaxAttempts:     intField(rec, "maxAttempts"),
		ClaimedBy:       stringField(rec, "claimedBy"),
		LockToken:       stringField(rec, "lockToken"),
		FailureStrategy: FailureStrategy(stringField(rec, "failureStrategy")),
	}
	e.VisibleAt = timeField(rec, "visibleAt")
	e.QueuedAt = timeField(rec, "queuedAt")
	e.ClaimedAt = timeField(rec, "claimedAt")
	if data, ok := rec["data"].(map[string]any); ok {
		e.Data = data
	}
	return e
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)
	return s
}

func intField(rec map[string]any, key string) int {
	switch v := rec[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func timeField(rec map[string]any, key string) time.Time {
	s, ok := rec[key].(string)
	if !ok || s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func timeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// statusPartition is the partition name every queue's entries and
// tickets resources must declare (Field: "status") so Claim can list
// by state without a full scan.
const statusPartition = "byStatus"

func resourceListOpts(partition, value string) resource.ListPartitionOpts {
	return resource.ListPartitionOpts{Partition: partition, Value: value}
}

// Enqueue inserts a new pending entry carrying data, FIFO-ordered by
// queuedAt with id as tiebreaker.
func (q *Queue) Enqueue(ctx context.Context, data map[string]any) (Entry, error) {
	maxAttempts := q.cfg.MaxAttempts
	now := time.Now()

	rec, err := q.entries.Insert(ctx, map[string]any{
		"id":              idgen.New(),
		"data":            data,
		"status":          string(StatusPending),
		"visibleAt":       timeString(now),
		"attempts":        0,
		"maxAttempts":     maxAttempts,
		"queuedAt":        timeString(now),
		"failureStrategy": string(q.cfg.FailureStrategy),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("queue %q: enqueue: %w", q.cfg.Name, err)
	}
	return entryFromRecord(rec), nil
}
