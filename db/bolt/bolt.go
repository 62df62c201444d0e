// Package bolt wraps a bbolt database for the small amount of durable
// local state objectdb components need outside the blob store: the
// queue's recently-processed marker cache, surviving worker restarts
// between recovery sweeps.
package bolt

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// DB wraps a bbolt database with TTL-aware helpers.
type DB struct {
	*bolt.DB
}

// Open opens or creates a bbolt database at path.
func Open(path string) (*DB, error) {
	boltDB, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %q: %w", path, err)
	}
	return &DB{boltDB}, nil
}

// CreateBucket creates a bucket if it doesn't already exist.
func (db *DB) CreateBucket(name string) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return fmt.Errorf("bolt: create bucket %s: %w", name, err)
		}
		return nil
	})
}

type ttlEntry struct {
	ExpiresAt time.Time       `json:"expiresAt"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// PutTTL stores key in bucket with an expiry, after which GetFresh
// treats it as absent. A zero ttl never expires.
func (db *DB) PutTTL(bucket, key string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	entry := ttlEntry{ExpiresAt: expiresAt}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("bolt: encode %s/%s: %w", bucket, key, err)
	}

	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bolt: bucket not found: %s", bucket)
		}
		return b.Put([]byte(key), data)
	})
}

// GetFresh reports whether key exists in bucket and has not expired.
// An expired entry is treated the same as absent; it is not actively
// cleaned up here — a caller-driven sweep can call Delete for that.
func (db *DB) GetFresh(bucket, key string) (bool, error) {
	var found bool
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bolt: bucket not found: %s", bucket)
		}
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		var entry ttlEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return fmt.Errorf("bolt: decode %s/%s: %w", bucket, key, err)
		}
		found = entry.ExpiresAt.IsZero() || time.Now().Before(entry.ExpiresAt)
		return nil
	})
	return found, err
}

// Delete removes key from bucket.
func (db *DB) Delete(bucket, key string) error {
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bolt: bucket not found: %s", bucket)
		}
		return b.Delete([]byte(key))
	})
}
