package queue

import (
	"sync"
	"time"

	"github.com/evalgo-org/objectdb/db/bolt"
)

const markerBucket = "markers"

// markerCache tracks "recently processed" entry ids so a worker that
// crashes mid-claim and restarts does not double-dispatch the same
// entry. The in-process map is checked first; a bbolt-backed store
// (when configured) survives process restarts.
type markerCache struct {
	mu   sync.Mutex
	seen map[string]time.Time
	db   *bolt.DB
}

func newMarkerCache(path string) (*markerCache, error) {
	m := &markerCache{seen: make(map[string]time.Time)}
	if path == "" {
		return m, nil
	}
	db, err := bolt.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.CreateBucket(markerBucket); err != nil {
		return nil, err
	}
	m.db = db
	return m, nil
}

// Seen reports whether id was marked within its TTL window.
func (m *markerCache) Seen(id string) bool {
	m.mu.Lock()
	expiresAt, ok := m.seen[id]
	m.mu.Unlock()
	if ok && time.Now().Before(expiresAt) {
		return true
	}

	if m.db == nil {
		return false
	}
	fresh, err := m.db.GetFresh(markerBucket, id)
	return err == nil && fresh
}

// Mark records id as processed for ttl.
func (m *markerCache) Mark(id string, ttl time.Duration) {
	m.mu.Lock()
	m.seen[id] = time.Now().Add(ttl)
	m.mu.Unlock()

	if m.db != nil {
		_ = m.db.PutTTL(markerBucket, id, ttl)
	}
}

// Clear removes id's marker, used when a claim attempt fails after the
// marker was optimistically written.
func (m *markerCache) Clear(id string) {
	m.mu.Lock()
	delete(m.seen, id)
	m.mu.Unlock()

	if m.db != nil {
		_ = m.db.Delete(markerBucket, id)
	}
}
