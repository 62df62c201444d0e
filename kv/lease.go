package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evalgo-org/objectdb/store"
)

// Lease represents exclusive, time-bounded ownership of a key. It
// backs the entry lease (queue claim), ordering lease (dispatch
// ticket), coordinator lease (leader election), and sync lease
// (per-cluster inventory scheduling).
type Lease struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
	Epoch     int       `json:"epoch"`
	version   string
}

// Expired reports whether the lease's TTL has elapsed as of now.
func (l *Lease) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Acquire attempts to take ownership of key for the given owner and
// ttl. It succeeds if the key is unheld, or if the existing lease has
// expired — in which case the epoch is incremented, letting callers
// detect stale holders that wake up after losing a lease.
func (s *Store) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (*Lease, error) {
	now := time.Now()

	existing, err := s.getLease(ctx, key)
	switch {
	case err == nil:
		if !existing.Expired(now) {
			return nil, fmt.Errorf("kv: acquire %q: %w", key, store.ErrPreconditionFailed)
		}
		return s.writeLease(ctx, key, owner, ttl, existing.Epoch+1, existing.version)
	case store.IsNotFound(err):
		return s.writeLease(ctx, key, owner, ttl, 0, "")
	default:
		return nil, err
	}
}

// Renew extends a held lease. It fails with store.ErrPreconditionFailed
// if the caller is not the current holder or the lease expired and was
// reclaimed by someone else.
func (s *Store) Renew(ctx context.Context, key, owner string, ttl time.Duration) (*Lease, error) {
	existing, err := s.getLease(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing.Owner != owner {
		return nil, fmt.Errorf("kv: renew %q: %w", key, store.ErrPreconditionFailed)
	}
	return s.writeLease(ctx, key, owner, ttl, existing.Epoch, existing.version)
}

// Release drops a held lease. It is a no-op if owner does not
// currently hold it.
func (s *Store) Release(ctx context.Context, key, owner string) error {
	existing, err := s.getLease(ctx, key)
	if store.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.Owner != owner {
		return nil
	}
	return s.backend.Delete(ctx, key)
}

// IsLocked reports whether key is currently held by an unexpired lease.
func (s *Store) IsLocked(ctx context.Context, key string) (bool, error) {
	existing, err := s.getLease(ctx, key)
	if store.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !existing.Expired(time.Now()), nil
}

func (s *Store) getLease(ctx context.Context, key string) (*Lease, error) {
	obj, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var l Lease
	if err := json.Unmarshal(obj.Data, &l); err != nil {
		return nil, fmt.Errorf("kv: decode lease %q: %w", key, err)
	}
	l.version = obj.Version
	return &l, nil
}

func (s *Store) writeLease(ctx context.Context, key, owner string, ttl time.Duration, epoch int, ifMatch string) (*Lease, error) {
	l := &Lease{Owner: owner, ExpiresAt: time.Now().Add(ttl), Epoch: epoch}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("kv: encode lease %q: %w", key, err)
	}

	opts := store.PutOptions{TTL: ttl}
	if ifMatch != "" {
		opts.IfMatch = ifMatch
	} else {
		opts.IfNoneMatch = "*"
	}

	obj, err := s.backend.Put(ctx, key, data, opts)
	if err != nil {
		if store.IsPreconditionFailed(err) {
			return nil, fmt.Errorf("kv: acquire %q: %w", key, store.ErrPreconditionFailed)
		}
		return nil, err
	}
	l.version = obj.Version
	return l, nil
}
