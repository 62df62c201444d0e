package resource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evalgo-org/objectdb/eventbus"
	"github.com/evalgo-org/objectdb/idgen"
	"github.com/evalgo-org/objectdb/store"
)

// Hook mutates a record payload in place before a write. A hook that
// wants to reject the write should return an error.
type Hook func(data map[string]any) error

// MutationEvent is the payload delivered to Inserted/Deleted
// subscribers.
type MutationEvent struct {
	Resource string
	Record   map[string]any
}

// UpdateEvent is delivered to Updated subscribers, carrying both the
// new and prior record state.
type UpdateEvent struct {
	Resource string
	Record   map[string]any
	Before   map[string]any
}

// Options configures a Resource at construction time.
type Options struct {
	Behavior        Behavior
	Schema          Schema
	Partitions      []PartitionSpec
	Timestamps      bool
	AsyncPartitions bool
}

// ConditionalResult is returned by UpdateConditional: a failed
// precondition is reported as success=false, never as an error, per
// the platform's sole atomicity primitive.
type ConditionalResult struct {
	Success bool
	Data    map[string]any
	ETag    string
	Error   error
}

// Resource is a schema-typed, partition-indexed collection of records
// backed by a store.Store.
type Resource struct {
	Name    string
	opts    Options
	backend store.Store

	beforeInsert []Hook
	beforeUpdate []Hook
	beforePatch  []Hook

	Inserted *eventbus.Bus[MutationEvent]
	Updated  *eventbus.Bus[UpdateEvent]
	Deleted  *eventbus.Bus[MutationEvent]

	capabilities map[string]any
}

// New constructs a Resource named name over backend.
func New(name string, backend store.Store, opts Options) *Resource {
	return &Resource{
		Name:         name,
		opts:         opts,
		backend:      backend,
		Inserted:     eventbus.New[MutationEvent](),
		Updated:      eventbus.New[UpdateEvent](),
		Deleted:      eventbus.New[MutationEvent](),
		capabilities: make(map[string]any),
	}
}

// BeforeInsert registers a before-insert hook.
func (r *Resource) BeforeInsert(h Hook) { r.beforeInsert = append(r.beforeInsert, h) }

// BeforeUpdate registers a before-update hook, run by both Update and
// UpdateConditional.
func (r *Resource) BeforeUpdate(h Hook) { r.beforeUpdate = append(r.beforeUpdate, h) }

// BeforePatch registers a before-patch hook.
func (r *Resource) BeforePatch(h Hook) { r.beforePatch = append(r.beforePatch, h) }

// Attach registers a capability (e.g. a queue handle or graph handle)
// under name, replacing the teacher's pattern of monkey-patching
// methods onto a resource object.
func (r *Resource) Attach(name string, capability any) {
	r.capabilities[name] = capability
}

// Capability looks up a previously attached capability by name.
func (r *Resource) Capability(name string) (any, bool) {
	c, ok := r.capabilities[name]
	return c, ok
}

func (r *Resource) primaryKey(id string) string {
	return fmt.Sprintf("%s/%s", r.Name, id)
}

func runHooks(hooks []Hook, data map[string]any) error {
	for _, h := range hooks {
		if err := h(data); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resource) applyTimestamps(data map[string]any, isInsert bool) {
	if !r.opts.Timestamps {
		return
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if isInsert {
		data["createdAt"] = now
	}
	data["updatedAt"] = now
}

// Insert validates, runs before-insert hooks, assigns an id if absent,
// writes the primary object, writes partition index entries, and
// emits Inserted.
func (r *Resource) Insert(ctx context.Context, data map[string]any) (map[string]any, error) {
	payload := cloneMap(data)
	if payload["id"] == nil || payload["id"] == "" {
		payload["id"] = idgen.New()
	}
	id, _ := payload["id"].(string)

	if err := runHooks(r.beforeInsert, payload); err != nil {
		return nil, err
	}
	if err := r.opts.Schema.Validate(payload); err != nil {
		return nil, err
	}
	r.applyTimestamps(payload, true)

	body, metadata, err := encode(r.opts.Behavior, r.opts.Schema, payload)
	if err != nil {
		return nil, fmt.Errorf("resource: encode %q: %w", r.Name, err)
	}

	if _, err := r.backend.Put(ctx, r.primaryKey(id), body, store.PutOptions{Metadata: metadata}); err != nil {
		return nil, fmt.Errorf("resource: insert %q: %w", r.Name, err)
	}

	r.writePartitions(ctx, id, nil, payload)
	r.Inserted.Emit(MutationEvent{Resource: r.Name, Record: payload})
	return payload, nil
}

// writePartitions writes the current partition-index entry for data and,
// when before is non-nil and a partition's value actually changed, deletes
// the stale entry under the old value — otherwise a record that moves
// through several partition values (e.g. a status field) leaves every
// prior value's key behind forever.
func (r *Resource) writePartitions(ctx context.Context, id string, before, data map[string]any) {
	write := func() {
		for _, p := range r.opts.Partitions {
			newKey := p.key(r.Name, id, data)
			if before != nil {
				if oldKey := p.key(r.Name, id, before); oldKey != newKey {
					_ = r.backend.Delete(ctx, oldKey)
				}
			}
			body, _ := encode(r.opts.Behavior, r.opts.Schema, data)
			_, _ = r.backend.Put(ctx, newKey, body, store.PutOptions{})
		}
	}
	if r.opts.AsyncPartitions {
		go write()
		return
	}
	write()
}

func (r *Resource) deletePartitions(ctx context.Context, id string, data map[string]any) {
	for _, p := range r.opts.Partitions {
		_ = r.backend.Delete(ctx, p.key(r.Name, id, data))
	}
}

// Get returns the record by id, or NotFoundError if absent.
func (r *Resource) Get(ctx context.Context, id string) (map[string]any, error) {
	obj, err := r.backend.Get(ctx, r.primaryKey(id))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, &NotFoundError{Resource: r.Name, ID: id}
		}
		return nil, err
	}
	data, err := decode(obj.Data, obj.Metadata)
	if err != nil {
		return nil, fmt.Errorf("resource: decode %q/%s: %w", r.Name, id, err)
	}
	data["id"] = id
	return data, nil
}

// GetWithVersion is like Get but also returns the object's version
// tag, needed by callers performing a conditional update.
func (r *Resource) GetWithVersion(ctx context.Context, id string) (map[string]any, string, error) {
	obj, err := r.backend.Get(ctx, r.primaryKey(id))
	if err != nil {
		if store.IsNotFound(err) {
			return nil, "", &NotFoundError{Resource: r.Name, ID: id}
		}
		return nil, "", err
	}
	data, err := decode(obj.Data, obj.Metadata)
	if err != nil {
		return nil, "", fmt.Errorf("resource: decode %q/%s: %w", r.Name, id, err)
	}
	data["id"] = id
	return data, obj.Version, nil
}

// GetOrNull is Get but returns (nil, nil) instead of NotFoundError.
func (r *Resource) GetOrNull(ctx context.Context, id string) (map[string]any, error) {
	data, err := r.Get(ctx, id)
	if err != nil {
		var nf *NotFoundError
		if asNotFound(err, &nf) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func asNotFound(err error, target **NotFoundError) bool {
	nf, ok := err.(*NotFoundError)
	if ok {
		*target = nf
	}
	return ok
}

// GetMany returns every resolvable record among ids, skipping ones
// that do not exist.
func (r *Resource) GetMany(ctx context.Context, ids []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		data, err := r.GetOrNull(ctx, id)
		if err != nil {
			return nil, err
		}
		if data != nil {
			out = append(out, data)
		}
	}
	return out, nil
}

// Update replaces fields on the existing record (read-modify-write,
// no conditional check) and emits Updated.
func (r *Resource) Update(ctx context.Context, id string, fields map[string]any) (map[string]any, error) {
	before, _, err := r.GetWithVersion(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := cloneMap(before)
	for k, v := range fields {
		merged[k] = v
	}
	if err := runHooks(r.beforeUpdate, merged); err != nil {
		return nil, err
	}
	if err := r.opts.Schema.Validate(merged); err != nil {
		return nil, err
	}
	r.applyTimestamps(merged, false)

	body, metadata, err := encode(r.opts.Behavior, r.opts.Schema, merged)
	if err != nil {
		return nil, fmt.Errorf("resource: encode %q: %w", r.Name, err)
	}
	if _, err := r.backend.Put(ctx, r.primaryKey(id), body, store.PutOptions{Metadata: metadata}); err != nil {
		return nil, fmt.Errorf("resource: update %q: %w", r.Name, err)
	}

	r.writePartitions(ctx, id, before, merged)
	r.Updated.Emit(UpdateEvent{Resource: r.Name, Record: merged, Before: before})
	return merged, nil
}

// Patch is Update routed through the before-patch hook list instead
// of before-update.
func (r *Resource) Patch(ctx context.Context, id string, fields map[string]any) (map[string]any, error) {
	before, _, err := r.GetWithVersion(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := cloneMap(before)
	for k, v := range fields {
		merged[k] = v
	}
	if err := runHooks(r.beforePatch, merged); err != nil {
		return nil, err
	}
	if err := r.opts.Schema.Validate(merged); err != nil {
		return nil, err
	}
	r.applyTimestamps(merged, false)

	body, metadata, err := encode(r.opts.Behavior, r.opts.Schema, merged)
	if err != nil {
		return nil, fmt.Errorf("resource: encode %q: %w", r.Name, err)
	}
	if _, err := r.backend.Put(ctx, r.primaryKey(id), body, store.PutOptions{Metadata: metadata}); err != nil {
		return nil, fmt.Errorf("resource: patch %q: %w", r.Name, err)
	}

	r.writePartitions(ctx, id, before, merged)
	r.Updated.Emit(UpdateEvent{Resource: r.Name, Record: merged, Before: before})
	return merged, nil
}

// UpdateConditional is the platform's sole atomicity primitive: the
// write is accepted only if ifMatch equals the record's current
// version tag. A stale ifMatch is reported as Success=false, never as
// an error.
func (r *Resource) UpdateConditional(ctx context.Context, id string, fields map[string]any, ifMatch string) ConditionalResult {
	before, err := r.GetOrNull(ctx, id)
	if err != nil {
		return ConditionalResult{Error: err}
	}
	if before == nil {
		return ConditionalResult{Success: false}
	}

	merged := cloneMap(before)
	for k, v := range fields {
		merged[k] = v
	}
	if err := runHooks(r.beforeUpdate, merged); err != nil {
		return ConditionalResult{Error: err}
	}
	if err := r.opts.Schema.Validate(merged); err != nil {
		return ConditionalResult{Error: err}
	}
	r.applyTimestamps(merged, false)

	body, metadata, err := encode(r.opts.Behavior, r.opts.Schema, merged)
	if err != nil {
		return ConditionalResult{Error: fmt.Errorf("resource: encode %q: %w", r.Name, err)}
	}

	obj, err := r.backend.Put(ctx, r.primaryKey(id), body, store.PutOptions{IfMatch: ifMatch, Metadata: metadata})
	if err != nil {
		if store.IsPreconditionFailed(err) {
			return ConditionalResult{Success: false}
		}
		return ConditionalResult{Error: err}
	}

	r.writePartitions(ctx, id, before, merged)
	r.Updated.Emit(UpdateEvent{Resource: r.Name, Record: merged, Before: before})
	return ConditionalResult{Success: true, Data: merged, ETag: obj.Version}
}

// Delete removes id and emits Deleted. Deleting an absent id is a
// no-op, matching the underlying store's DELETE semantics.
func (r *Resource) Delete(ctx context.Context, id string) error {
	record, err := r.GetOrNull(ctx, id)
	if err != nil {
		return err
	}
	if err := r.backend.Delete(ctx, r.primaryKey(id)); err != nil {
		return fmt.Errorf("resource: delete %q/%s: %w", r.Name, id, err)
	}
	if record != nil {
		r.deletePartitions(ctx, id, record)
		r.Deleted.Emit(MutationEvent{Resource: r.Name, Record: record})
	}
	return nil
}

// DeleteMany deletes every id, stopping at the first error.
func (r *Resource) DeleteMany(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListIds returns every record id in the resource.
func (r *Resource) ListIds(ctx context.Context) ([]string, error) {
	prefix := r.Name + "/"
	keys, err := r.backend.List(ctx, store.ListOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("resource: list %q: %w", r.Name, err)
	}
	const partitionMarker = "_partitions/"
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		rest := k[len(prefix):]
		if strings.HasPrefix(rest, partitionMarker) {
			continue
		}
		ids = append(ids, rest)
	}
	sort.Strings(ids)
	return ids, nil
}

// ListOpts controls List's paging window.
type ListOpts struct {
	Limit  int
	Offset int
}

// List returns records in id order, windowed by opts.
func (r *Resource) List(ctx context.Context, opts ListOpts) ([]map[string]any, error) {
	ids, err := r.ListIds(ctx)
	if err != nil {
		return nil, err
	}
	ids = window(ids, opts.Offset, opts.Limit)
	return r.GetMany(ctx, ids)
}

// Page is List with offset/size naming matching the spec's paging
// contract.
func (r *Resource) Page(ctx context.Context, offset, size int) ([]map[string]any, error) {
	return r.List(ctx, ListOpts{Offset: offset, Limit: size})
}

// Filter is a predicate used by Query and Count.
type Filter func(data map[string]any) bool

// Query performs a full scan, applying filter to every record. There
// is no secondary index beyond declared partitions, matching the
// platform's Non-goals.
func (r *Resource) Query(ctx context.Context, filter Filter) ([]map[string]any, error) {
	ids, err := r.ListIds(ctx)
	if err != nil {
		return nil, err
	}
	records, err := r.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return records, nil
	}
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if filter(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Count returns the number of records matching filter (or all records
// if filter is nil).
func (r *Resource) Count(ctx context.Context, filter Filter) (int, error) {
	records, err := r.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// ListPartitionOpts narrows ListPartition to specific partition values.
type ListPartitionOpts struct {
	Partition string
	Value     string
	Limit     int
}

// ListPartition lists records via a declared partition's key prefix
// rather than the primary id space.
func (r *Resource) ListPartition(ctx context.Context, opts ListPartitionOpts) ([]map[string]any, error) {
	prefix := fmt.Sprintf("%s/_partitions/%s/%s/", r.Name, opts.Partition, opts.Value)
	keys, err := r.backend.List(ctx, store.ListOptions{Prefix: prefix, MaxKeys: opts.Limit})
	if err != nil {
		return nil, fmt.Errorf("resource: list partition %q: %w", opts.Partition, err)
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k[len(prefix):])
	}
	return r.GetMany(ctx, ids)
}

func window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
