package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store backed by a map, used throughout
// objectdb's test suite in place of S3Store. Version tags are
// monotonic per-key revision numbers rather than real ETags, but the
// conditional-write semantics (IfMatch/IfNoneMatch) are exact.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]*Object
	rev     map[string]int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*Object),
		rev:     make(map[string]int),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *obj
	clone.Data = append([]byte(nil), obj.Data...)
	return &clone, nil
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, exists := m.objects[key]

	if opts.IfNoneMatch == "*" && exists {
		return nil, ErrPreconditionFailed
	}
	if opts.IfMatch != "" {
		if !exists {
			return nil, ErrPreconditionFailed
		}
		if existing.Version != opts.IfMatch {
			return nil, ErrPreconditionFailed
		}
	}

	m.rev[key]++
	obj := &Object{
		Key:      key,
		Data:     append([]byte(nil), data...),
		Metadata: opts.Metadata,
		Version:  strconv.Itoa(m.rev[key]),
		TTL:      opts.TTL,
	}
	m.objects[key] = obj

	clone := *obj
	clone.Data = append([]byte(nil), obj.Data...)
	return &clone, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, opts ListOptions) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.objects {
		if opts.Prefix != "" && !strings.HasPrefix(k, opts.Prefix) {
			continue
		}
		if opts.StartAfter != "" && k <= opts.StartAfter {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if opts.MaxKeys > 0 && len(keys) > opts.MaxKeys {
		keys = keys[:opts.MaxKeys]
	}
	return keys, nil
}
