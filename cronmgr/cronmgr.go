// Package cronmgr wraps robfig/cron with named-job bookkeeping so
// callers can add, inspect, and stop a specific schedule by name
// rather than tracking raw cron.EntryIDs themselves.
package cronmgr

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type job struct {
	id         cron.EntryID
	fn         func()
	runOnStart bool
}

// Manager runs zero or more named schedules on one underlying
// cron.Cron instance.
type Manager struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]job
	started bool
}

// New constructs a Manager. When loc is nil, schedules run in the
// process's local timezone.
func New(loc *time.Location) *Manager {
	opts := []cron.Option{cron.WithSeconds()}
	if loc != nil {
		opts = append(opts, cron.WithLocation(loc))
	}
	return &Manager{
		cron:    cron.New(opts...),
		entries: make(map[string]job),
	}
}

// Add registers fn under name on the given cron spec, replacing any
// existing schedule of the same name. If runOnStart is true, fn also
// runs once immediately when Start is called (or right away, if the
// manager is already started).
func (m *Manager) Add(name, spec string, runOnStart bool, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[name]; ok {
		m.cron.Remove(existing.id)
		delete(m.entries, name)
	}

	id, err := m.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("cronmgr: add %q: %w", name, err)
	}
	m.entries[name] = job{id: id, fn: fn, runOnStart: runOnStart}

	if runOnStart && m.started {
		go fn()
	}
	return nil
}

// Remove stops and forgets the named schedule, if it exists.
func (m *Manager) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.entries[name]; ok {
		m.cron.Remove(j.id)
		delete(m.entries, name)
	}
}

// Start begins running every registered schedule and fires any
// runOnStart job once immediately.
func (m *Manager) Start() {
	m.mu.Lock()
	m.started = true
	var runNow []func()
	for _, j := range m.entries {
		if j.runOnStart {
			runNow = append(runNow, j.fn)
		}
	}
	m.mu.Unlock()

	m.cron.Start()
	for _, fn := range runNow {
		go fn()
	}
}

// Stop halts the scheduler, waiting for any in-flight job started by a
// cron tick to finish. A runOnStart run is launched in its own
// goroutine and is not waited for.
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// Names returns every currently registered schedule name.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	return names
}
