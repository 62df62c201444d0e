// Package metrics wraps the platform's six resource operation
// families (insert, update, delete, get, list, count) with timing and
// error counters, buffers detailed error/performance records to three
// internal resources, and exposes Prometheus text-format counters.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/evalgo-org/objectdb/resource"
	"github.com/evalgo-org/objectdb/store"
)

// Operation names one of the six wrapped families. delete subsumes
// deleteMany; list subsumes getAll/listIds/page.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpGet    Operation = "get"
	OpList   Operation = "list"
	OpCount  Operation = "count"
)

// OperationStats tallies one operation's outcomes, either globally or
// for a single resource.
type OperationStats struct {
	Count     int64
	TotalTime time.Duration
	Errors    int64
}

// Config controls buffering, retention, and flush cadence.
type Config struct {
	FlushInterval time.Duration
	RetentionDays int
	BufferLimit   int
}

// DefaultConfig returns a flush cadence and retention window suited to
// a long-running process: flush every 30s, keep 30 days of history.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 30 * time.Second,
		RetentionDays: 30,
		BufferLimit:   1000,
	}
}

// Collector accumulates in-memory operation counters and buffers
// error/performance records pending flush.
type Collector struct {
	cfg Config

	mu       sync.Mutex
	global   map[Operation]*OperationStats
	byRes    map[string]map[Operation]*OperationStats
	perfBuf  []perfRecord
	errBuf   []errorRecord

	perf   *resource.Resource
	errs   *resource.Resource
	counts *resource.Resource
}

type perfRecord struct {
	Resource  string
	Operation Operation
	Duration  time.Duration
	At        time.Time
}

type errorRecord struct {
	Resource  string
	Operation Operation
	Message   string
	At        time.Time
}

// New constructs a Collector backed by three internal resources
// (plg_metrics, plg_metrics_errors, plg_metrics_performance), each
// partitioned by date. cleanupOldData scans them with Query and
// compares each record's date field to the cutoff.
func New(cfg Config, backend store.Store) *Collector {
	datePartition := []resource.PartitionSpec{{Name: "date", Field: "date", MaxLength: 10}}
	return &Collector{
		cfg:    cfg,
		global: make(map[Operation]*OperationStats),
		byRes:  make(map[string]map[Operation]*OperationStats),
		counts: resource.New("plg_metrics", backend, resource.Options{Behavior: resource.BodyOnly, Partitions: datePartition}),
		errs:   resource.New("plg_metrics_errors", backend, resource.Options{Behavior: resource.BodyOnly, Partitions: datePartition}),
		perf:   resource.New("plg_metrics_performance", backend, resource.Options{Behavior: resource.BodyOnly, Partitions: datePartition}),
	}
}

// Wrap times fn's execution, recording the outcome under resourceName
// and op both globally and per-resource, then buffering an error
// record on failure.
func Wrap[T any](ctx context.Context, c *Collector, resourceName string, op Operation, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	elapsed := time.Since(start)
	c.record(resourceName, op, elapsed, err)
	return result, err
}

// WrapErr is Wrap for operations that return only an error (e.g. Delete).
func WrapErr(ctx context.Context, c *Collector, resourceName string, op Operation, fn func() error) error {
	start := time.Now()
	err := fn()
	c.record(resourceName, op, time.Since(start), err)
	return err
}

func (c *Collector) record(resourceName string, op Operation, elapsed time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.statsFor(c.global, op)
	g.Count++
	g.TotalTime += elapsed

	if c.byRes[resourceName] == nil {
		c.byRes[resourceName] = make(map[Operation]*OperationStats)
	}
	r := c.statsFor(c.byRes[resourceName], op)
	r.Count++
	r.TotalTime += elapsed

	now := time.Now().UTC()
	c.perfBuf = append(c.perfBuf, perfRecord{Resource: resourceName, Operation: op, Duration: elapsed, At: now})
	if err != nil {
		g.Errors++
		r.Errors++
		c.errBuf = append(c.errBuf, errorRecord{Resource: resourceName, Operation: op, Message: err.Error(), At: now})
	}

	if len(c.perfBuf) >= c.cfg.BufferLimit || len(c.errBuf) >= c.cfg.BufferLimit {
		go c.Flush(context.Background())
	}
}

func (c *Collector) statsFor(m map[Operation]*OperationStats, op Operation) *OperationStats {
	s, ok := m[op]
	if !ok {
		s = &OperationStats{}
		m[op] = s
	}
	return s
}

// Global returns a snapshot of this op's global counters.
func (c *Collector) Global(op Operation) OperationStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.global[op]; ok {
		return *s
	}
	return OperationStats{}
}

// ForResource returns a snapshot of this op's counters for resourceName.
func (c *Collector) ForResource(resourceName string, op Operation) OperationStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.byRes[resourceName]; ok {
		if s, ok := m[op]; ok {
			return *s
		}
	}
	return OperationStats{}
}
