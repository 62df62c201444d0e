// Package coordinator implements leader election, worker heartbeats,
// and the cold-start phase sequence that the durable queue's ticket
// dispatch protocol depends on.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evalgo-org/objectdb/eventbus"
	"github.com/evalgo-org/objectdb/kv"
	"github.com/evalgo-org/objectdb/objlog"
	"github.com/evalgo-org/objectdb/store"
)

// Config controls one Coordinator instance. Every queue (or other
// coordinated source) gets its own Coordinator scoped by Name, so
// leadership and worker registries never cross queue boundaries.
type Config struct {
	Name                   string
	WorkerID               string
	LeaseTTL               time.Duration
	RenewInterval          time.Duration
	HeartbeatTTL           time.Duration
	ColdStartEnabled       bool
	ColdStartPhaseDuration time.Duration
}

// DefaultConfig fills in the renewal cadence the coordinator uses:
// renew at roughly half the lease TTL, leaving margin for one missed
// tick before the lease can be stolen by a rival candidate.
func DefaultConfig(name, workerID string) Config {
	return Config{
		Name:                   name,
		WorkerID:               workerID,
		LeaseTTL:               15 * time.Second,
		RenewInterval:          7 * time.Second,
		HeartbeatTTL:           30 * time.Second,
		ColdStartEnabled:       true,
		ColdStartPhaseDuration: 2 * time.Second,
	}
}

type heartbeat struct {
	WorkerID string        `json:"workerId"`
	LastSeen time.Time     `json:"lastSeen"`
	TTL      time.Duration `json:"ttl"`
}

func (h heartbeat) expired(now time.Time) bool {
	return now.After(h.LastSeen.Add(h.TTL))
}

// ElectedEvent is emitted when this process becomes leader.
type ElectedEvent struct{}

// DemotedEvent is emitted when this process stops being leader.
type DemotedEvent struct{}

// Coordinator runs leader election and worker heartbeats over a
// kv.Store shared by every candidate process for a given queue.
type Coordinator struct {
	cfg Config
	kv  *kv.Store

	mu      sync.RWMutex
	leader  bool
	phase   Phase
	phaseAt time.Time

	Elected *eventbus.Bus[ElectedEvent]
	Demoted *eventbus.Bus[DemotedEvent]
}

// New constructs a Coordinator namespaced by cfg.Name over backend.
func New(backend *kv.Store, cfg Config) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		kv:      backend,
		Elected: eventbus.New[ElectedEvent](),
		Demoted: eventbus.New[DemotedEvent](),
		phase:   PhaseDiscovery,
	}
}

func (c *Coordinator) leaderKey() string {
	return c.kv.Key(c.cfg.Name, "leader")
}

func (c *Coordinator) workerKey(workerID string) string {
	return c.kv.Key(c.cfg.Name, "workers", workerID)
}

// Run drives election and lease renewal on RenewInterval until ctx is
// cancelled. Losing the lease demotes the process; it keeps competing
// for it on every subsequent tick.
func (c *Coordinator) Run(ctx context.Context) error {
	log := objlog.For("coordinator")
	ticker := time.NewTicker(c.cfg.RenewInterval)
	defer ticker.Stop()

	if err := c.tick(ctx); err != nil {
		log.WithError(err).Debug("initial election attempt did not win leadership")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.tick(ctx); err != nil {
				log.WithError(err).Debug("election tick failed")
			}
		}
	}
}

// Elect makes a single election attempt: renew if already leader,
// otherwise try to acquire the lease. It is what Run calls on every
// tick, exposed directly for callers that drive their own schedule
// (and for tests that don't want a long-running ticker goroutine).
func (c *Coordinator) Elect(ctx context.Context) error {
	return c.tick(ctx)
}

func (c *Coordinator) tick(ctx context.Context) error {
	if c.IsLeader() {
		if _, err := c.kv.Renew(ctx, c.leaderKey(), c.cfg.WorkerID, c.cfg.LeaseTTL); err != nil {
			c.setLeader(false)
			return fmt.Errorf("coordinator: renew %q: %w", c.cfg.Name, err)
		}
		c.advancePhase()
		return nil
	}

	if _, err := c.kv.Acquire(ctx, c.leaderKey(), c.cfg.WorkerID, c.cfg.LeaseTTL); err != nil {
		if store.IsPreconditionFailed(err) {
			return nil // held by another candidate, not an error condition
		}
		return fmt.Errorf("coordinator: acquire %q: %w", c.cfg.Name, err)
	}
	c.becomeLeader()
	return nil
}

func (c *Coordinator) becomeLeader() {
	c.mu.Lock()
	c.leader = true
	c.phase = PhaseDiscovery
	c.phaseAt = time.Now()
	c.mu.Unlock()
	c.Elected.Emit(ElectedEvent{})
}

func (c *Coordinator) setLeader(v bool) {
	c.mu.Lock()
	was := c.leader
	c.leader = v
	c.mu.Unlock()
	if was && !v {
		c.Demoted.Emit(DemotedEvent{})
	}
}

// advancePhase steps the cold-start sequence forward once the current
// phase has held for ColdStartPhaseDuration, giving late-arriving
// workers time to register a heartbeat before tickets go live.
func (c *Coordinator) advancePhase() {
	if !c.cfg.ColdStartEnabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase.IsTerminal() || time.Since(c.phaseAt) < c.cfg.ColdStartPhaseDuration {
		return
	}
	for _, next := range ValidTransitions[c.phase] {
		if c.phase.CanTransitionTo(next) {
			c.phase = next
			c.phaseAt = time.Now()
			return
		}
	}
}

// IsLeader reports whether this process currently holds the lease.
func (c *Coordinator) IsLeader() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.leader
}

// Phase returns the current cold-start phase.
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Release gives up leadership immediately, letting another candidate
// win the next tick without waiting for the lease to time out.
func (c *Coordinator) Release(ctx context.Context) error {
	if !c.IsLeader() {
		return nil
	}
	c.setLeader(false)
	return c.kv.Release(ctx, c.leaderKey(), c.cfg.WorkerID)
}

// Heartbeat registers workerID as alive for cfg.HeartbeatTTL. Workers
// call this on their own schedule; it is independent of leadership.
func (c *Coordinator) Heartbeat(ctx context.Context, workerID string) error {
	hb := heartbeat{WorkerID: workerID, LastSeen: time.Now(), TTL: c.cfg.HeartbeatTTL}
	return c.kv.Put(ctx, c.workerKey(workerID), hb, c.cfg.HeartbeatTTL)
}

// IsWorkerAlive reports whether workerID has a current heartbeat.
func (c *Coordinator) IsWorkerAlive(ctx context.Context, workerID string) (bool, error) {
	var hb heartbeat
	if err := c.kv.Get(ctx, c.workerKey(workerID), &hb); err != nil {
		return false, nil
	}
	return !hb.expired(time.Now()), nil
}

// LiveWorkers returns the IDs of every worker with a current heartbeat.
func (c *Coordinator) LiveWorkers(ctx context.Context) ([]string, error) {
	prefix := c.kv.Key(c.cfg.Name, "workers") + "/"
	keys, err := c.kv.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var live []string
	for _, key := range keys {
		var hb heartbeat
		if err := c.kv.Get(ctx, key, &hb); err != nil {
			continue
		}
		if !hb.expired(time.Now()) {
			live = append(live, hb.WorkerID)
		}
	}
	return live, nil
}
