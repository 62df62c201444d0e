// Package kv provides namespaced plugin storage and TTL leases over a
// store.Store, the primitive every coordinator, queue, and inventory
// lease in objectdb is built from.
package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evalgo-org/objectdb/store"
)

// Store namespaces keys under plugins/<plugin>[/<namespace>]/... so
// multiple plugins can share one underlying store.Store without key
// collisions.
type Store struct {
	backend store.Store
	plugin  string
}

// New returns a Store scoped to the given plugin name.
func New(backend store.Store, plugin string) *Store {
	return &Store{backend: backend, plugin: plugin}
}

// Key builds a namespaced key from the given path parts.
func (s *Store) Key(namespace string, parts ...string) string {
	segments := []string{"plugins", s.plugin}
	if namespace != "" {
		segments = append(segments, namespace)
	}
	segments = append(segments, parts...)
	return strings.Join(segments, "/")
}

// Get decodes the JSON value stored at key into v.
func (s *Store) Get(ctx context.Context, key string, v any) error {
	obj, err := s.backend.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj.Data, v); err != nil {
		return fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return nil
}

// Put JSON-encodes v and writes it at key.
func (s *Store) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %q: %w", key, err)
	}
	_, err = s.backend.Put(ctx, key, data, store.PutOptions{TTL: ttl})
	return err
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// List returns keys under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	return s.backend.List(ctx, store.ListOptions{Prefix: prefix})
}
