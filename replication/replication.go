// Package replication fans out resource mutations to external
// replicators with bounded concurrency, retry-with-backoff, a
// persistent error log, and sync-all replay.
package replication

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evalgo-org/objectdb/eventbus"
	"github.com/evalgo-org/objectdb/idgen"
	"github.com/evalgo-org/objectdb/resource"
)

// Op names the mutation kind a replicator is told about.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// LogStatus is a replication log entry's outcome.
type LogStatus string

const (
	LogPending LogStatus = "pending"
	LogSuccess LogStatus = "success"
	LogFailed  LogStatus = "failed"
)

// Replicator is one external sink the fabric drives events to. A
// Replicator decides for itself which resources/operations it cares
// about via ShouldReplicate, so one replicator config can cover many
// resources without the fabric needing resource-specific code.
type Replicator interface {
	ID() string
	ShouldReplicate(resourceName string, op Op) bool
	Replicate(ctx context.Context, resourceName string, op Op, id string, data map[string]any) error
}

// Config controls the fabric as a whole.
type Config struct {
	Concurrency       int
	MaxRetries        int
	BatchSize         int
	ResourceAllowlist []string
	ResourceBlocklist []string
	ResourceFilter    func(resourceName string) bool
}

// DefaultConfig mirrors the teacher's upload concurrency default and
// the platform's documented replicator fan-out width.
func DefaultConfig() Config {
	return Config{
		Concurrency: 5,
		MaxRetries:  3,
		BatchSize:   100,
	}
}

// Fabric captures mutation events on attached resources and drives
// them to every interested Replicator.
type Fabric struct {
	cfg         Config
	log         *resource.Resource
	replicators []Replicator
	resources   map[string]*resource.Resource

	Replicated *eventbus.Bus[ReplicatedEvent]
	Error      *eventbus.Bus[ErrorEvent]
}

// New constructs a Fabric. log is the internal replication-log
// resource (excluded from replication itself, mirroring the teacher's
// exclusion of its own audit/log resources from replay).
func New(cfg Config, log *resource.Resource, replicators ...Replicator) *Fabric {
	return &Fabric{
		cfg:         cfg,
		log:         log,
		replicators: replicators,
		resources:   make(map[string]*resource.Resource),
		Replicated:  eventbus.New[ReplicatedEvent](),
		Error:       eventbus.New[ErrorEvent](),
	}
}

// allowed applies the allowlist/blocklist/filter in that order,
// case-insensitively, matching spec.md's resource-filtering rule.
func (f *Fabric) allowed(name string) bool {
	lower := strings.ToLower(name)
	if len(f.cfg.ResourceAllowlist) > 0 {
		ok := false
		for _, a := range f.cfg.ResourceAllowlist {
			if strings.ToLower(a) == lower {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, b := range f.cfg.ResourceBlocklist {
		if strings.ToLower(b) == lower {
			return false
		}
	}
	if f.cfg.ResourceFilter != nil {
		return f.cfg.ResourceFilter(name)
	}
	return true
}

// Attach installs post-mutation listeners on r, unless r is filtered
// out or is the fabric's own log resource.
func (f *Fabric) Attach(r *resource.Resource) {
	if r == f.log || !f.allowed(r.Name) {
		return
	}
	f.resources[r.Name] = r

	r.Inserted.Subscribe(func(ev resource.MutationEvent) {
		f.dispatch(context.Background(), ev.Resource, OpInsert, ev.Record)
	})
	r.Updated.Subscribe(func(ev resource.UpdateEvent) {
		f.dispatch(context.Background(), ev.Resource, OpUpdate, ev.Record)
	})
	r.Deleted.Subscribe(func(ev resource.MutationEvent) {
		f.dispatch(context.Background(), ev.Resource, OpDelete, ev.Record)
	})
}

// sanitize drops internal bookkeeping fields before handing a payload
// to a replicator, matching spec.md's "drop leading-underscore,
// $overflow, $before, $after fields" rule.
func sanitize(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if strings.HasPrefix(k, "_") || k == "$overflow" || k == "$before" || k == "$after" {
			continue
		}
		out[k] = v
	}
	return out
}

func recordID(data map[string]any) string {
	id, _ := data["id"].(string)
	return id
}

func (f *Fabric) dispatch(ctx context.Context, resourceName string, op Op, data map[string]any) {
	id := recordID(data)
	payload := sanitize(data)

	// Re-fetch the current record so replicators see the latest state
	// rather than a possibly-stale event snapshot; fall back to the
	// event payload if the record has since been removed.
	if r, ok := f.resources[resourceName]; ok && op != OpDelete {
		if current, err := r.Get(ctx, id); err == nil {
			payload = sanitize(current)
		}
	}

	interested := make([]Replicator, 0, len(f.replicators))
	for _, rep := range f.replicators {
		if rep.ShouldReplicate(resourceName, op) {
			interested = append(interested, rep)
		}
	}
	if len(interested) == 0 {
		return
	}

	f.fanOut(ctx, interested, resourceName, op, id, payload)
}

func (f *Fabric) logEntry(ctx context.Context, replicatorID, resourceName string, op Op, data map[string]any, status LogStatus, cause error, retryCount int) {
	if f.log == nil {
		return
	}
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}
	_, _ = f.log.Insert(ctx, map[string]any{
		"id":         idgen.New(),
		"replicator": replicatorID,
		"resource":   resourceName,
		"operation":  string(op),
		"data":       data,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"status":     string(status),
		"error":      errMsg,
		"retryCount": retryCount,
	})
}

func backoff(attempt int) time.Duration {
	d := time.Second
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

func (f *Fabric) replicateWithRetry(ctx context.Context, rep Replicator, resourceName string, op Op, id string, data map[string]any) error {
	var lastErr error
	maxRetries := f.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		lastErr = rep.Replicate(ctx, resourceName, op, id, data)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("replicator %q: %s %s %s: %w", rep.ID(), op, resourceName, id, lastErr)
}
